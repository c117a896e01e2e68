package command

import (
	"reflect"
	"testing"
)

func TestParseAdminChannel(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"login", "/admin secret123", AdminLogin{Password: "secret123"}},
		{"login without password", "/admin", AdminLogin{}},
		{"list", "/list", AdminList{}},
		{"help", "/help", AdminHelp{}},
		{"delete", "/delete 测试号", AdminDelete{Name: "测试号"}},
		{"test", "/test 测试号", AdminTest{Name: "测试号"}},
		{"unknown", "/reboot now", AdminUnknown{Command: "reboot"}},
		{
			"bind with fields",
			"/bind 测试号\nappid:wx123\nsecret: abc\nnote",
			AdminBind{Name: "测试号", Fields: map[string]string{"appid": "wx123", "secret": "abc"}},
		},
		{
			"publish with fields",
			"/publish 测试号\ntitle:今日资讯\ncontent:正文",
			AdminPublish{Name: "测试号", Fields: map[string]string{"title": "今日资讯", "content": "正文"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseUserChannel(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"bind", "绑定 wx123 abc_456 我的公众号", BindAccount{AppID: "wx123", Secret: "abc_456", Nickname: "我的公众号"}},
		{"bind nickname greedy", "绑定 wx123 s3cret 不存在的 画廊", BindAccount{AppID: "wx123", Secret: "s3cret", Nickname: "不存在的 画廊"}},
		{"list exact", "我的配置", ListAccounts{}},
		{"list synonym", "查看配置", ListAccounts{}},
		{"test", "测试 测试号", TestAccount{Nickname: "测试号"}},
		{"generate", "图图 晚霞 海边的日落与归船", GenerateImage{Title: "晚霞", Plot: "海边的日落与归船"}},
		{"generate plot greedy", "图图 晚霞 海边 日落 归船", GenerateImage{Title: "晚霞", Plot: "海边 日落 归船"}},
		{"query work", "查询图图 abc123", QueryWork{WorkID: "abc123"}},
		{"query publish result", "查询发布结果 abc123", QueryPublishResult{WorkID: "abc123"}},
		{"publish work", "发布图图 abc123 测试号 今日画集", PublishWork{WorkID: "abc123", Nickname: "测试号", Title: "今日画集", Author: DefaultAuthor}},
		{"publish work with author", "发布图图 abc123 测试号 今日画集 小编", PublishWork{WorkID: "abc123", Nickname: "测试号", Title: "今日画集", Author: "小编"}},
		{"greeting", "你好呀", Greeting{}},
		{"greeting romanized", "HELLO there", Greeting{}},
		{"time", "现在几点？时间", TimeQuery{}},
		{"status", "状态如何", StatusQuery{}},
		{"chat fallback", "今天天气不错", Chat{Text: "今天天气不错"}},
		{"empty", "   ", Chat{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParsePublishArticle(t *testing.T) {
	got := Parse("使用 A 发布 T C 作者")
	want := PublishArticle{Nickname: "A", Title: "T", Content: "C", Author: "作者"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %#v, want %#v", got, want)
	}

	got = Parse("使用 A 发布 T C")
	want = PublishArticle{Nickname: "A", Title: "T", Content: "C", Author: DefaultAuthor}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() without author = %#v, want %#v", got, want)
	}
}

func TestParseFormatHelpShadowsFallback(t *testing.T) {
	cases := []struct {
		text  string
		topic HelpTopic
	}{
		{"绑定abc", HelpBind},
		{"绑定", HelpBind},
		{"我想 使用 这个 发布", HelpPublish},
		{"图图", HelpGenerate},
		{"查询图图", HelpQueryWork},
		{"查询图图 不是字母数字", HelpQueryWork},
		{"查询发布结果", HelpQueryPublish},
		{"发布图图 abc123", HelpPublishWork},
	}
	for _, tc := range cases {
		got := Parse(tc.text)
		help, ok := got.(FormatHelp)
		if !ok {
			t.Fatalf("Parse(%q) = %#v, want FormatHelp", tc.text, got)
		}
		if help.Topic != tc.topic {
			t.Fatalf("Parse(%q) topic = %q, want %q", tc.text, help.Topic, tc.topic)
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	inputs := []string{
		"使用 我的号 发布 标题 内容 作者",
		"绑定 wx1 s1 号",
		"随便聊聊",
		"/bind x\na:b",
	}
	for _, text := range inputs {
		first := Parse(text)
		second := Parse(text)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Parse(%q) not deterministic: %#v vs %#v", text, first, second)
		}
	}
}
