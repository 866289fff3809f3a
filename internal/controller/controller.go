// Package controller bridges the entity store and the remote data gateway. Each
// operation follows the same discipline: mark the collection loading and
// clear its error, call the gateway, then either apply the result or record
// the failure. Prior data is never partially overwritten; a failed call
// leaves the store stale but consistent. Nothing is retried automatically.
package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taxmatch/internal/blob"
	"taxmatch/internal/gateway"
	"taxmatch/internal/lifecycle"
	"taxmatch/internal/session"
	"taxmatch/internal/state"
	"taxmatch/pkg/domain"
)

// ErrNoSession indicates an operation that needs a signed-in user.
var ErrNoSession = errors.New("no signed-in user")

// tokenSetter is implemented by gateways that authenticate calls with a
// session access token.
type tokenSetter interface {
	SetToken(token string)
}

// Document is a file selected for upload with a new request.
type Document struct {
	Name        string
	Content     []byte
	ContentType string
}

// Config wires a Controller. Store and Gateway are required; Blobs is
// required only for CreateRequest with attachments.
type Config struct {
	Store    *state.Store
	Gateway  gateway.Gateway
	Blobs    blob.Store
	Sessions session.Store
	Rules    lifecycle.Rules
	Logger   *slog.Logger
}

// Controller orchestrates fetch-on-view, write, and refetch-on-write cycles.
// Concurrent invocations of the same operation race last-write-wins; callers
// wanting cancellation pass a context tied to the view's lifetime; a
// cancelled operation discards its result, clearing only the loading flag.
type Controller struct {
	store    *state.Store
	gw       gateway.Gateway
	blobs    blob.Store
	sessions session.Store
	rules    lifecycle.Rules
	log      *slog.Logger
}

func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    cfg.Store,
		gw:       cfg.Gateway,
		blobs:    cfg.Blobs,
		sessions: cfg.Sessions,
		rules:    cfg.Rules,
		log:      logger,
	}, nil
}

// SignUp registers a user with the platform, records the identity in the
// store, and persists the session when a session store is configured.
func (c *Controller) SignUp(ctx context.Context, email, password, name string, role domain.UserRole) (domain.User, error) {
	if role != domain.RoleSeeker && role != domain.RoleProvider {
		return domain.User{}, &domain.ValidationError{Field: "role", Reason: "must be seeker or provider"}
	}
	if strings.TrimSpace(name) == "" {
		return domain.User{}, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	sess, err := c.gw.SignUp(ctx, email, password, gateway.Record{"name": name, "role": string(role)})
	if err != nil {
		return domain.User{}, fmt.Errorf("sign up: %w", err)
	}
	return c.establishSession(ctx, sess)
}

// SignIn authenticates and records the identity.
func (c *Controller) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	sess, err := c.gw.SignIn(ctx, email, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("sign in: %w", err)
	}
	return c.establishSession(ctx, sess)
}

// Restore resumes a previously persisted session, if one exists and has not
// expired.
func (c *Controller) Restore(ctx context.Context) (domain.User, bool, error) {
	if c.sessions == nil {
		return domain.User{}, false, nil
	}
	sess, ok, err := c.sessions.Load(ctx)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	if ts, ok := c.gw.(tokenSetter); ok {
		ts.SetToken(sess.AccessToken)
	}
	user, err := c.fetchUser(ctx, sess.UserID)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("restore session: %w", err)
	}
	c.store.SetCurrentUser(user)
	return user, true, nil
}

// RestoreToken resumes a session from a bare access token, e.g. one issued
// out of band. The identity comes from the token's claims; it is persisted
// like a fresh sign-in.
func (c *Controller) RestoreToken(ctx context.Context, token string) (domain.User, error) {
	sess, err := session.FromToken(token)
	if err != nil {
		return domain.User{}, err
	}
	if ts, ok := c.gw.(tokenSetter); ok {
		ts.SetToken(sess.AccessToken)
	}
	return c.establishSession(ctx, sess)
}

// SignOut clears the identity and any persisted session.
func (c *Controller) SignOut(ctx context.Context) error {
	c.store.ClearCurrentUser()
	if c.sessions != nil {
		return c.sessions.Clear(ctx)
	}
	return nil
}

func (c *Controller) establishSession(ctx context.Context, sess gateway.Session) (domain.User, error) {
	user, err := c.fetchUser(ctx, sess.UserID)
	if err != nil {
		return domain.User{}, err
	}
	c.store.SetCurrentUser(user)
	if c.sessions != nil {
		if err := c.sessions.Save(ctx, sess); err != nil {
			c.log.Warn("persist session failed", "error", err)
		}
	}
	return user, nil
}

func (c *Controller) fetchUser(ctx context.Context, id string) (domain.User, error) {
	rec, err := c.gw.QueryOne(ctx, gateway.CollectionUsers, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return gateway.UserFromRecord(rec)
}

// FetchDashboard loads the signed-in user's requests: a provider sees the
// requests assigned to them, a seeker the ones they posted, newest first.
func (c *Controller) FetchDashboard(ctx context.Context) error {
	user, ok := c.store.CurrentUser()
	if !ok {
		return ErrNoSession
	}
	col := c.store.Requests
	col.SetLoading(true)
	col.SetError("")

	column := "seeker_id"
	if user.Role == domain.RoleProvider {
		column = "provider_id"
	}
	recs, err := c.gw.Query(ctx, gateway.CollectionRequests, gateway.Query{
		Filters:    []gateway.Filter{{Column: column, Value: user.ID}},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err == nil {
		var requests []domain.ServiceRequest
		requests, err = gateway.RequestsFromRecords(recs)
		if err == nil {
			if cerr := ctx.Err(); cerr != nil {
				col.SetLoading(false)
				return cerr
			}
			col.Replace(requests)
			col.SetLoading(false)
			return nil
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		col.SetLoading(false)
		return cerr
	}
	col.SetError(err.Error())
	col.SetLoading(false)
	return fmt.Errorf("fetch dashboard: %w", err)
}

// FetchRequestDetail loads a single request with joined display names. A
// missing id surfaces as ErrNotFound for the full-view error state.
func (c *Controller) FetchRequestDetail(ctx context.Context, id string) (domain.ServiceRequest, error) {
	col := c.store.Requests
	col.SetLoading(true)
	col.SetError("")

	rec, err := c.gw.QueryOne(ctx, gateway.CollectionRequests, id,
		gateway.Join{Alias: gateway.JoinSeeker, Column: "seeker_id", Field: "name"},
		gateway.Join{Alias: gateway.JoinProvider, Column: "provider_id", Field: "name"},
	)
	var request domain.ServiceRequest
	if err == nil {
		request, err = gateway.RequestFromRecord(rec)
	}
	if cerr := ctx.Err(); cerr != nil {
		col.SetLoading(false)
		return domain.ServiceRequest{}, cerr
	}
	if err != nil {
		col.SetError(err.Error())
		col.SetLoading(false)
		return domain.ServiceRequest{}, fmt.Errorf("fetch request %s: %w", id, err)
	}
	col.Upsert(request)
	col.SetLoading(false)
	return request, nil
}

// FetchMessages loads the full ordered message thread for a request. A
// failure degrades to the previous thread contents: it is logged but not
// stored as a collection error, so a broken thread never blocks the
// surrounding detail view.
func (c *Controller) FetchMessages(ctx context.Context, requestID string) error {
	col := c.store.Messages
	col.SetLoading(true)
	col.SetError("")

	recs, err := c.gw.Query(ctx, gateway.CollectionMessages, gateway.Query{
		Filters: []gateway.Filter{{Column: "request_id", Value: requestID}},
		Joins:   []gateway.Join{{Alias: gateway.JoinSender, Column: "sender_id", Field: "name"}},
		OrderBy: "created_at",
	})
	var messages []domain.Message
	if err == nil {
		messages, err = gateway.MessagesFromRecords(recs)
	}
	if cerr := ctx.Err(); cerr != nil {
		col.SetLoading(false)
		return cerr
	}
	if err != nil {
		c.log.Warn("fetch messages failed", "request_id", requestID, "error", err)
		col.SetLoading(false)
		return nil
	}
	col.Replace(messages)
	col.SetLoading(false)
	return nil
}

// SendMessage inserts a message and then refetches the full thread rather
// than appending locally, so sender names and timestamp order always come
// from the platform. The caller's input stays blocked until this returns.
func (c *Controller) SendMessage(ctx context.Context, requestID, content string) error {
	user, ok := c.store.CurrentUser()
	if !ok {
		return ErrNoSession
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return &domain.ValidationError{Field: "content", Reason: "required"}
	}
	if _, err := c.gw.Insert(ctx, gateway.CollectionMessages, gateway.MessageRecord(requestID, user.ID, content)); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		c.store.Messages.SetError(err.Error())
		return fmt.Errorf("send message: %w", err)
	}
	return c.FetchMessages(ctx, requestID)
}

// SubmitProposal validates and inserts a provider's proposal against an
// open request, then refetches the request detail. It returns only after
// both steps succeed, so the caller can keep its dialog open on any error.
func (c *Controller) SubmitProposal(ctx context.Context, requestID string, amount float64, message string) error {
	user, ok := c.store.CurrentUser()
	if !ok {
		return ErrNoSession
	}
	if amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(message) == "" {
		return &domain.ValidationError{Field: "message", Reason: "required"}
	}
	col := c.store.Proposals
	col.SetLoading(true)
	col.SetError("")

	request, found := c.store.Requests.Get(requestID)
	if !found {
		var err error
		request, err = c.FetchRequestDetail(ctx, requestID)
		if err != nil {
			col.SetLoading(false)
			return err
		}
	}
	var existing []domain.Proposal
	if c.rules.SingleProposalPerProvider {
		recs, err := c.gw.Query(ctx, gateway.CollectionProposals, gateway.Query{
			Filters: []gateway.Filter{
				{Column: "request_id", Value: requestID},
				{Column: "provider_id", Value: user.ID},
			},
		})
		if err == nil {
			existing, err = gateway.ProposalsFromRecords(recs)
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				col.SetLoading(false)
				return cerr
			}
			col.SetError(err.Error())
			col.SetLoading(false)
			return fmt.Errorf("check existing proposals: %w", err)
		}
	}
	if err := c.rules.CanPropose(user, request, existing); err != nil {
		col.SetLoading(false)
		return err
	}

	rec, err := c.gw.Insert(ctx, gateway.CollectionProposals, gateway.ProposalRecord(requestID, user.ID, amount, message))
	var proposal domain.Proposal
	if err == nil {
		proposal, err = gateway.ProposalFromRecord(rec)
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			col.SetLoading(false)
			return cerr
		}
		col.SetError(err.Error())
		col.SetLoading(false)
		return fmt.Errorf("submit proposal: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		col.SetLoading(false)
		return cerr
	}
	col.Upsert(proposal)
	col.SetLoading(false)
	if _, err := c.FetchRequestDetail(ctx, requestID); err != nil {
		return err
	}
	return nil
}

// CreateRequest uploads every attached document, then creates the request
// with the resulting URLs in selection order, and prepends it to the
// request collection. Uploads run concurrently and the whole operation is
// all-or-nothing: any failed upload aborts before the request insert.
func (c *Controller) CreateRequest(ctx context.Context, in domain.RequestInput, files []Document) (domain.ServiceRequest, error) {
	user, ok := c.store.CurrentUser()
	if !ok {
		return domain.ServiceRequest{}, ErrNoSession
	}
	if err := c.rules.CanCreate(user); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.ServiceRequest{}, err
	}
	if len(files) > 0 && c.blobs == nil {
		return domain.ServiceRequest{}, fmt.Errorf("blob store not configured")
	}
	col := c.store.Requests
	col.SetLoading(true)
	col.SetError("")

	urls, err := c.uploadDocuments(ctx, user.ID, files)
	if err == nil {
		var rec gateway.Record
		rec, err = c.gw.Insert(ctx, gateway.CollectionRequests, gateway.RequestRecord(in, user.ID, urls))
		if err == nil {
			var request domain.ServiceRequest
			request, err = gateway.RequestFromRecord(rec)
			if err == nil {
				if cerr := ctx.Err(); cerr != nil {
					col.SetLoading(false)
					return domain.ServiceRequest{}, cerr
				}
				col.Prepend(request)
				col.SetLoading(false)
				return request, nil
			}
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		col.SetLoading(false)
		return domain.ServiceRequest{}, cerr
	}
	col.SetError(err.Error())
	col.SetLoading(false)
	return domain.ServiceRequest{}, fmt.Errorf("create request: %w", err)
}

// uploadDocuments pushes all files concurrently and joins on completion.
// The returned URL list matches the order files were selected in; the first
// failure cancels the remaining uploads and fails the whole batch.
func (c *Controller) uploadDocuments(ctx context.Context, userID string, files []Document) ([]string, error) {
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		key := userID + "/" + uuid.NewString() + path.Ext(file.Name)
		g.Go(func() error {
			if err := c.blobs.Upload(gctx, key, bytes.NewReader(file.Content), int64(len(file.Content)), file.ContentType); err != nil {
				return fmt.Errorf("upload %s: %w", file.Name, err)
			}
			urls[i] = c.blobs.PublicURL(key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
