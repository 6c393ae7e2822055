package actions

const (
	MsgInviteSent  = "Connection invite sent successfully"
	MsgMessageSent = "Message sent successfully"
)

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusPending      ConnectionStatus = "PENDING"
	StatusNotConnected ConnectionStatus = "NOT_CONNECTED"
)

type InviteResult struct {
	ProfileURL string `json:"profileUrl"`
	Message    string `json:"message"`
	Note       string `json:"note,omitempty"`
	DryRun     bool   `json:"dryRun"`
}

type MessageResult struct {
	ProfileURL string `json:"profileUrl"`
	Message    string `json:"message"`
	Text       string `json:"text"`
	DryRun     bool   `json:"dryRun"`
}

type StatusResult struct {
	ProfileURL string           `json:"profileUrl"`
	Status     ConnectionStatus `json:"status"`
	Degree     string           `json:"degree,omitempty"`
}

type Post struct {
	URN  string `json:"urn"`
	Text string `json:"text"`
}

type PostsResult struct {
	ProfileURL string `json:"profileUrl"`
	Posts      []Post `json:"posts"`
}

type MessagesResult struct {
	ProfileURL string   `json:"profileUrl"`
	Messages   []string `json:"messages"`
}

type Person struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl"`
	Headline   string `json:"headline,omitempty"`
}

type ConnectionsResult struct {
	Total       int      `json:"total"`
	Connections []Person `json:"connections"`
}

type SearchResult struct {
	Keywords string   `json:"keywords,omitempty"`
	Company  string   `json:"company,omitempty"`
	Pages    int      `json:"pages"`
	People   []Person `json:"people"`
	Invited  []string `json:"invited"`
	DryRun   bool     `json:"dryRun"`
}
