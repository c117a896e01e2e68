package command

import (
	"regexp"
	"strings"
)

var (
	bindPattern        = regexp.MustCompile(`^绑定\s+([a-zA-Z0-9_]+)\s+([a-zA-Z0-9_]+)\s+(.+)$`)
	testPattern        = regexp.MustCompile(`^测试\s+(.+)$`)
	publishPattern     = regexp.MustCompile(`^使用\s+(.+?)\s+发布\s+(.+?)\s+(.+?)(?:\s+(.+?))?$`)
	generatePattern    = regexp.MustCompile(`^图图\s+(.+?)\s+(.+)$`)
	queryWorkPattern   = regexp.MustCompile(`^查询图图\s+([a-zA-Z0-9]+)$`)
	queryResultPattern = regexp.MustCompile(`^查询发布结果\s+([a-zA-Z0-9]+)$`)
	publishWorkPattern = regexp.MustCompile(`^发布图图\s+([a-zA-Z0-9]+)\s+(.+?)\s+(.+?)(?:\s+(.+))?$`)
)

// listPhrases are the exact texts that show the caller's linked accounts.
var listPhrases = map[string]bool{
	"我的配置": true,
	"配置列表": true,
	"我的账号": true,
	"查看配置": true,
}

// Parse maps raw message text to exactly one intent. Pattern order matters:
// the first match wins, so prefix-triggered help intents shadow everything
// after them.
func Parse(text string) Intent {
	content := strings.TrimSpace(text)
	if content == "" {
		return Chat{}
	}
	if strings.HasPrefix(content, "/") {
		return parseAdmin(content)
	}
	return parseUser(content)
}

// parseAdmin handles the slash channel. The first line carries
// "/command name"; bind and publish read key:value pairs from the remaining
// lines, split on the first colon.
func parseAdmin(content string) Intent {
	lines := strings.Split(content, "\n")
	firstLine := strings.TrimSpace(lines[0])

	parts := strings.SplitN(firstLine, " ", 3)
	name := ""
	if len(parts) > 1 {
		name = parts[1]
	}

	switch cmd := strings.TrimPrefix(parts[0], "/"); cmd {
	case "admin":
		return AdminLogin{Password: name}
	case "bind":
		return AdminBind{Name: name, Fields: parseKeyValueLines(lines[1:])}
	case "publish":
		return AdminPublish{Name: name, Fields: parseKeyValueLines(lines[1:])}
	case "list":
		return AdminList{}
	case "help":
		return AdminHelp{}
	case "delete":
		return AdminDelete{Name: name}
	case "test":
		return AdminTest{Name: name}
	default:
		return AdminUnknown{Command: cmd}
	}
}

func parseKeyValueLines(lines []string) map[string]string {
	fields := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

func parseUser(content string) Intent {
	lower := strings.ToLower(content)

	if m := bindPattern.FindStringSubmatch(content); m != nil {
		return BindAccount{
			AppID:    strings.TrimSpace(m[1]),
			Secret:   strings.TrimSpace(m[2]),
			Nickname: strings.TrimSpace(m[3]),
		}
	}
	if strings.HasPrefix(content, "绑定") {
		return FormatHelp{Topic: HelpBind}
	}

	if listPhrases[content] {
		return ListAccounts{}
	}

	if m := testPattern.FindStringSubmatch(content); m != nil {
		return TestAccount{Nickname: strings.TrimSpace(m[1])}
	}

	if m := publishPattern.FindStringSubmatch(content); m != nil {
		author := strings.TrimSpace(m[4])
		if author == "" {
			author = DefaultAuthor
		}
		return PublishArticle{
			Nickname: strings.TrimSpace(m[1]),
			Title:    strings.TrimSpace(m[2]),
			Content:  strings.TrimSpace(m[3]),
			Author:   author,
		}
	}
	// Deliberately loose: a chat message mentioning both keywords also lands
	// here, matching the original behavior.
	if strings.Contains(content, "发布") && strings.Contains(content, "使用") {
		return FormatHelp{Topic: HelpPublish}
	}

	if m := generatePattern.FindStringSubmatch(content); m != nil {
		return GenerateImage{
			Title: strings.TrimSpace(m[1]),
			Plot:  strings.TrimSpace(m[2]),
		}
	}
	if strings.HasPrefix(content, "图图") {
		return FormatHelp{Topic: HelpGenerate}
	}

	if m := queryWorkPattern.FindStringSubmatch(content); m != nil {
		return QueryWork{WorkID: m[1]}
	}
	if strings.HasPrefix(content, "查询图图") {
		return FormatHelp{Topic: HelpQueryWork}
	}

	if m := queryResultPattern.FindStringSubmatch(content); m != nil {
		return QueryPublishResult{WorkID: m[1]}
	}
	if strings.HasPrefix(content, "查询发布结果") {
		return FormatHelp{Topic: HelpQueryPublish}
	}

	if m := publishWorkPattern.FindStringSubmatch(content); m != nil {
		author := strings.TrimSpace(m[4])
		if author == "" {
			author = DefaultAuthor
		}
		return PublishWork{
			WorkID:   m[1],
			Nickname: strings.TrimSpace(m[2]),
			Title:    strings.TrimSpace(m[3]),
			Author:   author,
		}
	}
	if strings.HasPrefix(content, "发布图图") {
		return FormatHelp{Topic: HelpPublishWork}
	}

	switch {
	case strings.Contains(content, "你好") || strings.Contains(lower, "hello"):
		return Greeting{}
	case strings.Contains(content, "帮助") || strings.Contains(lower, "help"):
		return Help{}
	case strings.Contains(content, "功能") || strings.Contains(lower, "functions"):
		return Functions{}
	case strings.Contains(content, "时间") || strings.Contains(lower, "time"):
		return TimeQuery{}
	case strings.Contains(content, "状态") || strings.Contains(lower, "status"):
		return StatusQuery{}
	}

	return Chat{Text: content}
}
