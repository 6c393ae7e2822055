package automation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Payload is the typed, validated form of RunRecord.Payload. Each run type
// has exactly one variant.
type Payload interface {
	RunType() RunType
}

type FindConnectionsPayload struct {
	Keywords string `json:"keywords"`
	MaxPages int    `json:"maxPages,omitempty"`
	Connect  bool   `json:"connect,omitempty"`
	Message  string `json:"message,omitempty"`
	DryRun   bool   `json:"dryRun,omitempty"`
}

type ConnectionRequestPayload struct {
	ProfileURL string `json:"profileUrl"`
	Message    string `json:"message,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	DryRun     bool   `json:"dryRun,omitempty"`
}

type SendMessagePayload struct {
	ProfileURL string `json:"profileUrl"`
	Message    string `json:"message,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	DryRun     bool   `json:"dryRun,omitempty"`
}

type CompanyPeoplePayload struct {
	CompanyName string `json:"companyName"`
	MaxPages    int    `json:"maxPages,omitempty"`
	DryRun      bool   `json:"dryRun,omitempty"`
}

type DownloadConnectionsPayload struct {
	MaxScrolls int `json:"maxScrolls,omitempty"`
}

type GetMessagesPayload struct {
	ProfileURL string `json:"profileUrl"`
	Limit      int    `json:"limit,omitempty"`
}

type ConnectionStatusPayload struct {
	ProfileURL string `json:"profileUrl"`
}

type RecentPostsPayload struct {
	ProfileURL string `json:"profileUrl"`
	Limit      int    `json:"limit,omitempty"`
}

func (FindConnectionsPayload) RunType() RunType     { return RunFindConnections }
func (ConnectionRequestPayload) RunType() RunType   { return RunSendConnectionRequest }
func (SendMessagePayload) RunType() RunType         { return RunSendMessage }
func (CompanyPeoplePayload) RunType() RunType       { return RunFindCompanyPeople }
func (DownloadConnectionsPayload) RunType() RunType { return RunDownloadConnections }
func (GetMessagesPayload) RunType() RunType         { return RunGetMessages }
func (ConnectionStatusPayload) RunType() RunType    { return RunCheckConnectionStatus }
func (RecentPostsPayload) RunType() RunType         { return RunGetRecentPosts }

const (
	DefaultMaxPages   = 3
	DefaultMaxScrolls = 40
	DefaultListLimit  = 20
	// MaxInviteNote is the longest note the site accepts on an invitation.
	MaxInviteNote = 300
)

const profileURLSchema = `{"type": "string", "minLength": 1, "pattern": "^https?://"}`

var payloadSchemas = map[RunType]string{
	RunFindConnections: `{
		"type": "object",
		"required": ["keywords"],
		"properties": {
			"keywords": {"type": "string", "minLength": 1},
			"maxPages": {"type": "integer", "minimum": 1, "maximum": 100},
			"connect":  {"type": "boolean"},
			"message":  {"type": "string", "maxLength": 300},
			"dryRun":   {"type": "boolean"}
		}
	}`,
	RunSendConnectionRequest: `{
		"type": "object",
		"required": ["profileUrl"],
		"properties": {
			"profileUrl": ` + profileURLSchema + `,
			"message": {"type": "string", "maxLength": 300},
			"prompt":  {"type": "string"},
			"dryRun":  {"type": "boolean"}
		}
	}`,
	RunSendMessage: `{
		"type": "object",
		"required": ["profileUrl"],
		"anyOf": [
			{"required": ["message"], "properties": {"message": {"minLength": 1}}},
			{"required": ["prompt"], "properties": {"prompt": {"minLength": 1}}}
		],
		"properties": {
			"profileUrl": ` + profileURLSchema + `,
			"message": {"type": "string"},
			"prompt":  {"type": "string"},
			"dryRun":  {"type": "boolean"}
		}
	}`,
	RunFindCompanyPeople: `{
		"type": "object",
		"required": ["companyName"],
		"properties": {
			"companyName": {"type": "string", "minLength": 1},
			"maxPages":    {"type": "integer", "minimum": 1, "maximum": 100},
			"dryRun":      {"type": "boolean"}
		}
	}`,
	RunDownloadConnections: `{
		"type": "object",
		"properties": {
			"maxScrolls": {"type": "integer", "minimum": 1, "maximum": 1000}
		}
	}`,
	RunGetMessages: `{
		"type": "object",
		"required": ["profileUrl"],
		"properties": {
			"profileUrl": ` + profileURLSchema + `,
			"limit": {"type": "integer", "minimum": 1, "maximum": 500}
		}
	}`,
	RunCheckConnectionStatus: `{
		"type": "object",
		"required": ["profileUrl"],
		"properties": {
			"profileUrl": ` + profileURLSchema + `
		}
	}`,
	RunGetRecentPosts: `{
		"type": "object",
		"required": ["profileUrl"],
		"properties": {
			"profileUrl": ` + profileURLSchema + `,
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		}
	}`,
}

var compiledSchemas = mustCompileSchemas()

func mustCompileSchemas() map[RunType]*gojsonschema.Schema {
	out := make(map[RunType]*gojsonschema.Schema, len(payloadSchemas))
	for t, src := range payloadSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("payload schema for %s: %v", t, err))
		}
		out[t] = schema
	}
	return out
}

// ParsePayload validates raw against the schema for t and decodes it into
// the matching variant. An unknown type or a malformed payload yields a
// *ValidationError.
func ParsePayload(t RunType, raw json.RawMessage) (Payload, error) {
	schema, ok := compiledSchemas[t]
	if !ok {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a run type", t), Err: ErrUnknownRunType}
	}
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &ValidationError{Field: "payload", Reason: "not valid JSON", Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ValidationError{Field: "payload", Reason: strings.Join(problems, "; "), Err: ErrInvalidPayload}
	}

	var p Payload
	switch t {
	case RunFindConnections:
		p, err = decode[FindConnectionsPayload](raw)
	case RunSendConnectionRequest:
		p, err = decode[ConnectionRequestPayload](raw)
	case RunSendMessage:
		p, err = decode[SendMessagePayload](raw)
	case RunFindCompanyPeople:
		p, err = decode[CompanyPeoplePayload](raw)
	case RunDownloadConnections:
		p, err = decode[DownloadConnectionsPayload](raw)
	case RunGetMessages:
		p, err = decode[GetMessagesPayload](raw)
	case RunCheckConnectionStatus:
		p, err = decode[ConnectionStatusPayload](raw)
	case RunGetRecentPosts:
		p, err = decode[RecentPostsPayload](raw)
	}
	if err != nil {
		return nil, &ValidationError{Field: "payload", Reason: "decode", Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}
	return withDefaults(p)
}

func decode[T Payload](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func withDefaults(p Payload) (Payload, error) {
	switch v := p.(type) {
	case FindConnectionsPayload:
		if v.MaxPages == 0 {
			v.MaxPages = DefaultMaxPages
		}
		return v, nil
	case CompanyPeoplePayload:
		if v.MaxPages == 0 {
			v.MaxPages = DefaultMaxPages
		}
		return v, nil
	case DownloadConnectionsPayload:
		if v.MaxScrolls == 0 {
			v.MaxScrolls = DefaultMaxScrolls
		}
		return v, nil
	case GetMessagesPayload:
		if v.Limit == 0 {
			v.Limit = DefaultListLimit
		}
		return v, checkProfileURL(v.ProfileURL)
	case RecentPostsPayload:
		if v.Limit == 0 {
			v.Limit = DefaultListLimit
		}
		return v, checkProfileURL(v.ProfileURL)
	case ConnectionRequestPayload:
		return v, checkProfileURL(v.ProfileURL)
	case SendMessagePayload:
		return v, checkProfileURL(v.ProfileURL)
	case ConnectionStatusPayload:
		return v, checkProfileURL(v.ProfileURL)
	}
	return p, nil
}

func checkProfileURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: "profileUrl", Reason: fmt.Sprintf("%q is not an absolute URL", raw), Err: ErrInvalidPayload}
	}
	return nil
}
