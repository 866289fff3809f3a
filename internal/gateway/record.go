package gateway

import (
	"fmt"
	"time"

	"taxmatch/pkg/domain"
)

// Join aliases used by the client's queries.
const (
	JoinSeeker   = "seekers"
	JoinProvider = "providers"
	JoinSender   = "users"
)

// UserFromRecord maps a users row.
func UserFromRecord(rec Record) (domain.User, error) {
	var u domain.User
	var err error
	if u.ID, err = stringField(CollectionUsers, rec, "id"); err != nil {
		return domain.User{}, err
	}
	if u.Email, err = stringField(CollectionUsers, rec, "email"); err != nil {
		return domain.User{}, err
	}
	if u.Name, err = stringField(CollectionUsers, rec, "name"); err != nil {
		return domain.User{}, err
	}
	role, err := stringField(CollectionUsers, rec, "role")
	if err != nil {
		return domain.User{}, err
	}
	switch domain.UserRole(role) {
	case domain.RoleSeeker, domain.RoleProvider:
		u.Role = domain.UserRole(role)
	default:
		return domain.User{}, &MappingError{Collection: CollectionUsers, Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	u.CreatedAt, _ = optionalTimeField(rec, "created_at")
	return u, nil
}

// RequestFromRecord maps a service_requests row, including the optional
// joined seeker/provider display names.
func RequestFromRecord(rec Record) (domain.ServiceRequest, error) {
	const col = CollectionRequests
	var r domain.ServiceRequest
	var err error
	if r.ID, err = stringField(col, rec, "id"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.Title, err = stringField(col, rec, "title"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.Description, err = stringField(col, rec, "description"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.Category, err = stringField(col, rec, "category"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.SeekerID, err = stringField(col, rec, "seeker_id"); err != nil {
		return domain.ServiceRequest{}, err
	}
	r.ProviderID, _ = optionalStringField(rec, "provider_id")
	status, err := stringField(col, rec, "status")
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	switch domain.RequestStatus(status) {
	case domain.StatusOpen, domain.StatusInProgress, domain.StatusCompleted:
		r.Status = domain.RequestStatus(status)
	default:
		return domain.ServiceRequest{}, &MappingError{Collection: col, Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if r.Budget, err = budgetField(col, rec); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.Deadline, err = timeField(col, rec, "deadline"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.Documents, err = stringListField(col, rec, "documents"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.CreatedAt, err = timeField(col, rec, "created_at"); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.SeekerName, err = joinedNameField(col, rec, JoinSeeker); err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.ProviderName, err = joinedNameField(col, rec, JoinProvider); err != nil {
		return domain.ServiceRequest{}, err
	}
	return r, nil
}

// MessageFromRecord maps a messages row. The joined users record supplies
// the sender display name.
func MessageFromRecord(rec Record) (domain.Message, error) {
	const col = CollectionMessages
	var m domain.Message
	var err error
	if m.ID, err = stringField(col, rec, "id"); err != nil {
		return domain.Message{}, err
	}
	if m.RequestID, err = stringField(col, rec, "request_id"); err != nil {
		return domain.Message{}, err
	}
	if m.SenderID, err = stringField(col, rec, "sender_id"); err != nil {
		return domain.Message{}, err
	}
	if m.Content, err = stringField(col, rec, "content"); err != nil {
		return domain.Message{}, err
	}
	if m.CreatedAt, err = timeField(col, rec, "created_at"); err != nil {
		return domain.Message{}, err
	}
	if m.SenderName, err = joinedNameField(col, rec, JoinSender); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// ProposalFromRecord maps a proposals row.
func ProposalFromRecord(rec Record) (domain.Proposal, error) {
	const col = CollectionProposals
	var p domain.Proposal
	var err error
	if p.ID, err = stringField(col, rec, "id"); err != nil {
		return domain.Proposal{}, err
	}
	if p.RequestID, err = stringField(col, rec, "request_id"); err != nil {
		return domain.Proposal{}, err
	}
	if p.ProviderID, err = stringField(col, rec, "provider_id"); err != nil {
		return domain.Proposal{}, err
	}
	if p.Amount, err = numberField(col, rec, "amount"); err != nil {
		return domain.Proposal{}, err
	}
	if p.Message, err = stringField(col, rec, "message"); err != nil {
		return domain.Proposal{}, err
	}
	status, err := stringField(col, rec, "status")
	if err != nil {
		return domain.Proposal{}, err
	}
	switch domain.ProposalStatus(status) {
	case domain.ProposalPending, domain.ProposalAccepted, domain.ProposalRejected:
		p.Status = domain.ProposalStatus(status)
	default:
		return domain.Proposal{}, &MappingError{Collection: col, Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if p.CreatedAt, err = timeField(col, rec, "created_at"); err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// RequestsFromRecords maps a list query result, failing on the first bad row.
func RequestsFromRecords(recs []Record) ([]domain.ServiceRequest, error) {
	out := make([]domain.ServiceRequest, 0, len(recs))
	for _, rec := range recs {
		r, err := RequestFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// MessagesFromRecords maps a message list query result.
func MessagesFromRecords(recs []Record) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		m, err := MessageFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ProposalsFromRecords maps a proposal list query result.
func ProposalsFromRecords(recs []Record) ([]domain.Proposal, error) {
	out := make([]domain.Proposal, 0, len(recs))
	for _, rec := range recs {
		p, err := ProposalFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// RequestRecord builds the insert payload for a new open request.
func RequestRecord(in domain.RequestInput, seekerID string, documents []string) Record {
	if documents == nil {
		documents = []string{}
	}
	return Record{
		"title":       in.Title,
		"description": in.Description,
		"category":    in.Category,
		"budget":      map[string]any{"min": in.Budget.Min, "max": in.Budget.Max},
		"deadline":    in.Deadline.Format(time.RFC3339),
		"documents":   documents,
		"seeker_id":   seekerID,
		"status":      string(domain.StatusOpen),
	}
}

// MessageRecord builds the insert payload for a new message.
func MessageRecord(requestID, senderID, content string) Record {
	return Record{
		"request_id": requestID,
		"sender_id":  senderID,
		"content":    content,
	}
}

// ProposalRecord builds the insert payload for a new pending proposal.
func ProposalRecord(requestID, providerID string, amount float64, message string) Record {
	return Record{
		"request_id":  requestID,
		"provider_id": providerID,
		"amount":      amount,
		"message":     message,
		"status":      string(domain.ProposalPending),
	}
}

func stringField(collection string, rec Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", &MappingError{Collection: collection, Field: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &MappingError{Collection: collection, Field: key, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func optionalStringField(rec Record, key string) (string, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func numberField(collection string, rec Record, key string) (float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, &MappingError{Collection: collection, Field: key, Reason: "missing"}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, &MappingError{Collection: collection, Field: key, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
}

func timeField(collection string, rec Record, key string) (time.Time, error) {
	t, ok := parseTimeValue(rec[key])
	if !ok {
		return time.Time{}, &MappingError{Collection: collection, Field: key, Reason: "expected timestamp"}
	}
	return t, nil
}

func optionalTimeField(rec Record, key string) (time.Time, bool) {
	return parseTimeValue(rec[key])
}

func parseTimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func budgetField(collection string, rec Record) (domain.Budget, error) {
	v, ok := rec["budget"]
	if !ok || v == nil {
		return domain.Budget{}, &MappingError{Collection: collection, Field: "budget", Reason: "missing"}
	}
	nested, ok := toRecord(v)
	if !ok {
		return domain.Budget{}, &MappingError{Collection: collection, Field: "budget", Reason: fmt.Sprintf("expected object, got %T", v)}
	}
	min, err := numberField(collection, nested, "min")
	if err != nil {
		return domain.Budget{}, &MappingError{Collection: collection, Field: "budget.min", Reason: "expected number"}
	}
	max, err := numberField(collection, nested, "max")
	if err != nil {
		return domain.Budget{}, &MappingError{Collection: collection, Field: "budget.max", Reason: "expected number"}
	}
	return domain.Budget{Min: min, Max: max}, nil
}

func stringListField(collection string, rec Record, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &MappingError{Collection: collection, Field: key, Reason: fmt.Sprintf("expected string element, got %T", item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &MappingError{Collection: collection, Field: key, Reason: fmt.Sprintf("expected list, got %T", v)}
	}
}

// joinedNameField reads alias.name from an embedded join. A missing join is
// fine (the query did not ask for it); a present join with a bad shape is a
// mapping error rather than a silent empty name.
func joinedNameField(collection string, rec Record, alias string) (string, error) {
	v, ok := rec[alias]
	if !ok || v == nil {
		return "", nil
	}
	nested, ok := toRecord(v)
	if !ok {
		return "", &MappingError{Collection: collection, Field: alias, Reason: fmt.Sprintf("expected joined object, got %T", v)}
	}
	name, ok := nested["name"].(string)
	if !ok {
		return "", &MappingError{Collection: collection, Field: alias + ".name", Reason: "missing"}
	}
	return name, nil
}

func toRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	default:
		return nil, false
	}
}
