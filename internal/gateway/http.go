package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const singleObjectAccept = "application/vnd.pgrst.object+json"

// HTTPGateway talks to a hosted data platform over its REST surface
// (PostgREST-style row filters, GoTrue-style auth endpoints).
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPGateway constructs a gateway client. apiKey is the platform's
// public key; it authenticates anonymous calls until a session token is set.
func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the session access token used on subsequent calls.
func (g *HTTPGateway) SetToken(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

func (g *HTTPGateway) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	params := url.Values{}
	params.Set("select", selectClause(q.Joins))
	for _, f := range q.Filters {
		params.Set(f.Column, "eq."+fmt.Sprint(f.Value))
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	req, err := g.newRequest(ctx, http.MethodGet, g.restURL(collection, params), nil)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := g.do(req, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (g *HTTPGateway) QueryOne(ctx context.Context, collection, id string, joins ...Join) (Record, error) {
	params := url.Values{}
	params.Set("select", selectClause(joins))
	params.Set("id", "eq."+id)
	req, err := g.newRequest(ctx, http.MethodGet, g.restURL(collection, params), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", singleObjectAccept)
	var rec Record
	if err := g.do(req, &rec); err != nil {
		if apiErr, ok := err.(*APIError); ok && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusNotAcceptable) {
			return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (g *HTTPGateway) Insert(ctx context.Context, collection string, rec Record) (Record, error) {
	req, err := g.newRequest(ctx, http.MethodPost, g.restURL(collection, nil), rec)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", singleObjectAccept)
	req.Header.Set("Prefer", "return=representation")
	var created Record
	if err := g.do(req, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (g *HTTPGateway) Update(ctx context.Context, collection, id string, changes Record) (Record, error) {
	params := url.Values{}
	params.Set("id", "eq."+id)
	req, err := g.newRequest(ctx, http.MethodPatch, g.restURL(collection, params), changes)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", singleObjectAccept)
	req.Header.Set("Prefer", "return=representation")
	var updated Record
	if err := g.do(req, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// SignUp registers credentials with the auth endpoint and creates the
// matching profile row.
func (g *HTTPGateway) SignUp(ctx context.Context, email, password string, profile Record) (Session, error) {
	sess, err := g.authCall(ctx, "/auth/v1/signup", Record{"email": email, "password": password})
	if err != nil {
		return Session{}, err
	}
	g.SetToken(sess.AccessToken)
	row := Record{"id": sess.UserID, "email": email}
	for k, v := range profile {
		row[k] = v
	}
	if _, err := g.Insert(ctx, CollectionUsers, row); err != nil {
		return Session{}, fmt.Errorf("create profile: %w", err)
	}
	return sess, nil
}

func (g *HTTPGateway) SignIn(ctx context.Context, email, password string) (Session, error) {
	sess, err := g.authCall(ctx, "/auth/v1/token?grant_type=password", Record{"email": email, "password": password})
	if err != nil {
		return Session{}, err
	}
	g.SetToken(sess.AccessToken)
	return sess, nil
}

func (g *HTTPGateway) authCall(ctx context.Context, path string, body Record) (Session, error) {
	req, err := g.newRequest(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return Session{}, err
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := g.do(req, &resp); err != nil {
		return Session{}, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return Session{}, &APIError{Status: http.StatusBadGateway, Message: "auth response missing token or user"}
	}
	return Session{
		AccessToken: resp.AccessToken,
		UserID:      resp.User.ID,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

func (g *HTTPGateway) restURL(collection string, params url.Values) string {
	u := g.baseURL + "/rest/v1/" + collection
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (g *HTTPGateway) newRequest(ctx context.Context, method, rawURL string, body any) (*http.Request, error) {
	var reader *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(buf)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", g.apiKey)
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token == "" {
		token = g.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func selectClause(joins []Join) string {
	parts := []string{"*"}
	for _, j := range joins {
		parts = append(parts, fmt.Sprintf("%s:%s(%s)", j.Alias, j.Column, j.Field))
	}
	return strings.Join(parts, ",")
}
