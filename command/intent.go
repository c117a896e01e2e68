// Package command turns raw inbound message text into typed intents. Parsing
// is total: malformed input degrades to a format-help or chat intent, never an
// error.
package command

// DefaultAuthor is used when a publish command omits the trailing author.
const DefaultAuthor = "不存在的画廊"

// HelpTopic identifies which command's usage help to show when input starts
// like a command but does not parse.
type HelpTopic string

const (
	HelpBind         HelpTopic = "bind"
	HelpPublish      HelpTopic = "publish"
	HelpGenerate     HelpTopic = "generate"
	HelpQueryWork    HelpTopic = "query_work"
	HelpQueryPublish HelpTopic = "query_publish"
	HelpPublishWork  HelpTopic = "publish_work"
)

// Intent is the parsed form of one inbound message. Each variant carries
// exactly the fields its grammar can produce; values are immutable once
// returned from Parse.
type Intent interface {
	isIntent()
}

// Admin channel (slash-prefixed).

type AdminLogin struct {
	Password string
}

type AdminBind struct {
	Name   string
	Fields map[string]string
}

type AdminPublish struct {
	Name   string
	Fields map[string]string
}

type AdminList struct{}

type AdminHelp struct{}

type AdminDelete struct {
	Name string
}

type AdminTest struct {
	Name string
}

// AdminUnknown is any other slash command.
type AdminUnknown struct {
	Command string
}

// User channel.

type BindAccount struct {
	AppID    string
	Secret   string
	Nickname string
}

type ListAccounts struct{}

type TestAccount struct {
	Nickname string
}

type PublishArticle struct {
	Nickname string
	Title    string
	Content  string
	Author   string
}

type GenerateImage struct {
	Title string
	Plot  string
}

type QueryWork struct {
	WorkID string
}

type QueryPublishResult struct {
	WorkID string
}

type PublishWork struct {
	WorkID   string
	Nickname string
	Title    string
	Author   string
}

// FormatHelp is emitted when text starts like one of the structured commands
// but fails its grammar.
type FormatHelp struct {
	Topic HelpTopic
}

type Greeting struct{}

type Help struct{}

type Functions struct{}

type TimeQuery struct{}

type StatusQuery struct{}

// Chat is the fallback for anything unrecognized, carrying the raw text.
type Chat struct {
	Text string
}

func (AdminLogin) isIntent()         {}
func (AdminBind) isIntent()          {}
func (AdminPublish) isIntent()       {}
func (AdminList) isIntent()          {}
func (AdminHelp) isIntent()          {}
func (AdminDelete) isIntent()        {}
func (AdminTest) isIntent()          {}
func (AdminUnknown) isIntent()       {}
func (BindAccount) isIntent()        {}
func (ListAccounts) isIntent()       {}
func (TestAccount) isIntent()        {}
func (PublishArticle) isIntent()     {}
func (GenerateImage) isIntent()      {}
func (QueryWork) isIntent()          {}
func (QueryPublishResult) isIntent() {}
func (PublishWork) isIntent()        {}
func (FormatHelp) isIntent()         {}
func (Greeting) isIntent()           {}
func (Help) isIntent()               {}
func (Functions) isIntent()          {}
func (TimeQuery) isIntent()          {}
func (StatusQuery) isIntent()        {}
func (Chat) isIntent()               {}
