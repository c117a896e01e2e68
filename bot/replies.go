package bot

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/command"
	"github.com/sup-lh/wechat-tool/ledger"
	"github.com/sup-lh/wechat-tool/tutu"
)

// Replies go out over the official-account text channel, which renders
// \r\n as the line break.

const (
	coverGeneratedInfo = "使用生成的封面图片"
	coverCustomInfo    = "使用您的自定义图片"
	coverDefaultInfo   = "使用默认封面"
)

func subscribeReply() string {
	return "嘿嘿~ 欢迎关注「不存在的画廊」！(´∀｀) 💖\r\n\r\n" +
		"我是这里的公众号助手，可以帮你：\r\n" +
		"• 绑定并管理你的公众号\r\n" +
		"• 用图图生成插画\r\n" +
		"• 把文章和图片发布到草稿箱\r\n\r\n" +
		"发送「帮助」看看怎么玩吧～ ✨"
}

func greetingReply() string {
	return "嘿嘿~ 你好呀！我是「不存在的画廊」的微信公众号助手～ (´∀｀) 💖"
}

func userHelpReply() string {
	return "嘿嘿~ 欢迎使用「不存在的画廊」的公众号助手！✨\r\n\r\n" +
		"🎮 基础功能：\r\n" +
		"• 发送\"你好\"来打招呼～\r\n" +
		"• 发送\"时间\"看现在几点啦\r\n" +
		"• 发送\"状态\"查看我的运行情况\r\n" +
		"• 发张图片给我试试看！\r\n\r\n" +
		"💖 想看我有什么特殊功能？\r\n" +
		"发送\"功能\"查看完整功能列表！\r\n\r\n" +
		"嘿嘿~ 试着跟我聊聊吧！(´∀｀)💫"
}

func functionsReply(configs map[string]accounts.Account) string {
	var b strings.Builder
	b.WriteString("🎯 我的功能列表：\r\n\r\n")
	b.WriteString("🎮 基础功能：\r\n")
	b.WriteString("• 你好 - 问候功能\r\n")
	b.WriteString("• 时间 - 获取当前时间\r\n")
	b.WriteString("• 状态 - 查看系统状态\r\n")
	b.WriteString("• 帮助 - 查看基础帮助\r\n")
	b.WriteString("• 功能 - 查看此功能列表\r\n\r\n")
	b.WriteString("📱 公众号管理功能：\r\n")
	b.WriteString("• 绑定 AppID Secret 昵称 - 绑定你的公众号\r\n")
	b.WriteString("• 我的配置 - 查看你的所有配置\r\n")
	b.WriteString("• 测试 昵称 - 测试配置连接\r\n")
	b.WriteString("• 使用 昵称 发布 标题 内容 作者 - 发布文章到草稿箱\r\n\r\n")
	b.WriteString("🎨 图图绘画功能：\r\n")
	b.WriteString("• 图图 标题 描述 - 生成一组插画\r\n")
	b.WriteString("• 查询图图 任务ID - 查看生成进度\r\n")
	b.WriteString("• 发布图图 任务ID 昵称 标题 [作者] - 把图片发布到草稿箱\r\n")
	b.WriteString("• 查询发布结果 任务ID - 查看发布记录\r\n\r\n")

	if len(configs) > 0 {
		b.WriteString("📋 你当前的配置：\r\n")
		for _, nickname := range sortedKeys(configs) {
			fmt.Fprintf(&b, "• %s (%s)\r\n", nickname, configs[nickname].AppID)
		}
		b.WriteString("\r\n💡 你可以直接使用昵称来测试和发布！")
	} else {
		b.WriteString("📭 你还没有绑定任何配置\r\n\r\n💡 发送「绑定 你的AppID 你的Secret 昵称」来开始使用！")
	}
	return b.String()
}

func timeReply(now time.Time) string {
	return fmt.Sprintf("当前时间是: %s 呀～ \\(^o^)/", now.Format("2006-01-02 15:04:05"))
}

func statusReply(now time.Time, namedConfigs int, works int, images int) string {
	return fmt.Sprintf("📊 系统状态：\r\n\r\n"+
		"⏰ 当前时间: %s\r\n"+
		"📱 已绑定配置: %d 个\r\n"+
		"🎨 图图作品: %d 个 (共%d张图)\r\n"+
		"🤖 服务状态: 正常运行\r\n\r\n"+
		"嘿嘿~ 一切正常呢！(´∀｀)", now.Format("2006-01-02 15:04:05"), namedConfigs, works, images)
}

func chatReply(content string) string {
	variants := []string{
		fmt.Sprintf("收到你的消息啦～ 你说: 「%s」\r\n\r\n嘿嘿~ 我是个专业的公众号助手，不是聊天机器人哦！\r\n试试发送「你好」看看我能做什么吧～ (´∀｀)💖", content),
		fmt.Sprintf("哇~ 你说的是「%s」呀！\r\n\r\n不过我主要是帮你管理公众号的呢～\r\n如果需要帮助就说「你好」吧！✨", content),
		fmt.Sprintf("「%s」... 嗯嗯，听起来很有趣！\r\n\r\n不过我更擅长的是公众号管理哦～\r\n有什么需要帮忙的就告诉我吧！(￣▽￣)", content),
	}
	return pickVariant(content, variants)
}

func unknownReply(content string) string {
	variants := []string{
		fmt.Sprintf("呃... 「%s」是什么呢？\r\n\r\n我好像听不懂诶～ 要不试试说「你好」？(´･ω･`)", content),
		fmt.Sprintf("嗯嗯... 你是想说「%s」吗？\r\n\r\n我还在学习中呢！发个「你好」我就知道怎么回答啦～ ✨", content),
		fmt.Sprintf("哎呀~ 「%s」这个我不太明白呢！\r\n\r\n说「你好」的话我就知道该怎么帮你啦！(´∀｀)", content),
	}
	return pickVariant(content, variants)
}

// pickVariant is deterministic so the same input always gets the same
// flavor of reply.
func pickVariant(seed string, variants []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return variants[int(h.Sum32())%len(variants)]
}

func imageReceivedReply() string {
	return "收到你的图片啦～ 📸\r\n\r\n不过现在我不知道要拿它做什么呢！\r\n如果想用它当文章封面，先发送「使用 昵称 发布 标题 内容」哦～ (´∀｀)"
}

// Admin replies.

func adminRequiredReply() string {
	return "❌ 需要管理员权限！\r\n\r\n发送 \"/admin 密码\" 获取权限"
}

func adminGrantedReply() string {
	return "✅ 管理员权限获取成功！\r\n\r\n" +
		"🔧 管理员功能：\r\n" +
		"• /list - 查看所有用户的配置\r\n" +
		"• /bind 配置名称 - 绑定公共配置\r\n" +
		"• /test 配置名称 - 测试公共配置\r\n" +
		"• /delete 配置名称 - 删除公共配置\r\n" +
		"• /publish 配置名称 - 发布文章\r\n" +
		"• /help - 管理员帮助\r\n\r\n" +
		"⏰ 权限有效期：30分钟\r\n\r\n" +
		"发送 \"/help\" 查看详细管理功能"
}

func adminPasswordWrongReply() string {
	return "❌ 管理员密码错误！"
}

func adminHelpReply() string {
	return "🔧 管理员专用功能：\r\n\r\n" +
		"📋 监控功能：\r\n" +
		"• /list - 查看所有用户的配置情况\r\n" +
		"• /help - 显示此帮助\r\n\r\n" +
		"📱 公共配置管理：\r\n" +
		"• /bind 配置名称 + 多行 appid:/secret:/token: - 绑定\r\n" +
		"• /test 配置名称 - 测试连接\r\n" +
		"• /delete 配置名称 - 删除\r\n" +
		"• /publish 配置名称 + 多行 title:/content:/author: - 发布到草稿箱\r\n\r\n" +
		"嘿嘿~ 简洁高效的管理！(´∀｀) 💖"
}

func adminListReply(users map[string]map[string]accounts.Account) string {
	var b strings.Builder
	b.WriteString("🔧 用户配置监控面板\r\n\r\n")

	if len(users) > 0 {
		total := 0
		for _, configs := range users {
			total += len(configs)
		}
		b.WriteString("👥 用户配置统计：\r\n")
		fmt.Fprintf(&b, "• 总用户数: %d\r\n", len(users))
		fmt.Fprintf(&b, "• 总配置数: %d\r\n\r\n", total)

		b.WriteString("👤 用户详情：\r\n")
		for _, userID := range sortedKeys(users) {
			configs := users[userID]
			fmt.Fprintf(&b, "• 用户 %s: %d个配置\r\n", userID, len(configs))
			for _, nickname := range sortedKeys(configs) {
				account := configs[nickname]
				fmt.Fprintf(&b, "  └ %s\r\n", nickname)
				fmt.Fprintf(&b, "    AppID: %s\r\n", account.AppID)
				fmt.Fprintf(&b, "    Secret: %s\r\n", account.Secret)
			}
		}
		b.WriteString("\r\n")
	} else {
		b.WriteString("👥 暂无用户配置\r\n\r\n")
	}

	b.WriteString("📊 系统运行正常！")
	return b.String()
}

func adminBindUsageReply() string {
	return "❌ 参数不完整！\r\n\r\n正确格式：\r\n/bind 配置名称\r\nappid:wx1234567890\r\nsecret:abcdef1234567890\r\ntoken:your_token"
}

func adminBindOKReply(name string, appID string, secret string, token string) string {
	tokenInfo := token
	if tokenInfo == "" {
		tokenInfo = "未设置"
	}
	return fmt.Sprintf("✅ 配置绑定成功！\r\n\r\n📱 配置名称: %s\r\n🔑 AppID: %s\r\n🔐 Secret: %s\r\n🎯 Token: %s\r\n\r\n配置已保存并验证通过！",
		name, appID, maskSecret(secret), tokenInfo)
}

func adminPublishUsageReply() string {
	return "❌ 参数不完整！\r\n\r\n正确格式：\r\n/publish 配置名称\r\ntitle:文章标题\r\ncontent:文章内容\r\nauthor:作者"
}

func adminDeleteOKReply(name string) string {
	return fmt.Sprintf("✅ 配置 '%s' 已删除！", name)
}

func namedNotFoundReply(name string) string {
	return fmt.Sprintf("❌ 找不到配置 '%s'\r\n\r\n发送 \"/list\" 查看现有配置～", name)
}

// User account replies.

func validateFailedReply() string {
	return "❌ 微信配置验证失败！\r\n\r\n请检查AppID和Secret是否正确呀～ (￣▽￣)"
}

func bindSaveFailedReply() string {
	return "❌ 配置保存失败！请稍后重试～"
}

func bindOKReply(nickname string, appID string, secret string) string {
	return fmt.Sprintf("✅ 绑定成功！\r\n\r\n🎯 昵称: %s\r\n🔑 AppID: %s\r\n🔐 Secret: %s\r\n\r\n现在你可以使用 \"测试 %s\" 来测试连接啦～",
		nickname, appID, maskSecret(secret), nickname)
}

func listAccountsReply(configs map[string]accounts.Account) string {
	if len(configs) == 0 {
		return "📋 你还没有绑定任何公众号配置呢～\r\n\r\n" +
			"🎯 想要绑定一个公众号？发送：\r\n绑定 你的AppID 你的Secret 昵称\r\n\r\n" +
			"例如：\r\n绑定 wx123456 abc123secret 我的测试号\r\n\r\n" +
			"绑定后就可以发布文章啦～ (´∀｀) 💖"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📱 你的公众号配置 (共%d个)：\r\n\r\n", len(configs))
	for _, nickname := range sortedKeys(configs) {
		account := configs[nickname]
		fmt.Fprintf(&b, "🔹 %s\r\n", nickname)
		fmt.Fprintf(&b, "   AppID: %s\r\n", maskAppID(account.AppID))
		fmt.Fprintf(&b, "   Secret: %s\r\n\r\n", maskSecretShort(account.Secret))
	}
	b.WriteString("💡 使用提示：\r\n")
	b.WriteString("• 测试连接：测试 昵称\r\n")
	b.WriteString("• 发布文章：使用 昵称 发布 标题 内容 作者\r\n")
	b.WriteString("• 查看配置：我的配置\r\n\r\n")
	b.WriteString("嘿嘿~ 这些都是你专属的配置哦！(´∀｀) 💖")
	return b.String()
}

func userNotFoundReply(nickname string) string {
	return fmt.Sprintf("❌ 找不到昵称 '%s' 的配置\r\n\r\n要不先绑定一个？嘿嘿~ (´∀｀)", nickname)
}

func testOKReply(nickname string) string {
	return fmt.Sprintf("✅ '%s' 连接测试成功！\r\n\r\n可以正常使用啦～ \\(^o^)/", nickname)
}

func testFailedReply(nickname string) string {
	return fmt.Sprintf("❌ '%s' 连接测试失败\r\n\r\n配置可能有问题哦～ (ﾟДﾟ)", nickname)
}

// Publish flow replies.

func coverPromptReply(title string, nickname string, author string) string {
	return fmt.Sprintf("📝 准备发布文章～\r\n\r\n📄 标题: %s\r\n📱 公众号: %s\r\n👤 作者: %s\r\n\r\n"+
		"🎨 请选择封面方式：\r\n回复 \"0\" - 使用生成的封面图片\r\n发送图片 - 使用您的图片作为封面\r\n\r\n"+
		"选择后立即发布到草稿箱！ (5分钟内有效) ✨", title, nickname, author)
}

func coverWaitingReply(title string) string {
	return fmt.Sprintf("🎨 等待您发送封面图片...\r\n\r\n📸 请发送一张图片作为 \"%s\" 的封面\r\n\r\n"+
		"或者回复 \"0\" 使用生成的封面图片\r\n\r\n(还剩几分钟时间哦) ⏰", title)
}

func publishOKReply(title string, nickname string, author string, coverInfo string) string {
	return fmt.Sprintf("✅ 文章发布成功！\r\n\r\n📝 标题: %s\r\n📱 公众号: %s\r\n👤 作者: %s\r\n🎯 已发布到草稿箱\r\n\r\n"+
		"🎨 封面: %s\r\n\r\n快去微信公众平台后台看看吧～ ✨", title, nickname, author, coverInfo)
}

func publishFailedReply(title string) string {
	return fmt.Sprintf("❌ 文章发布失败\r\n\r\n📝 标题: %s\r\n请检查网络连接和配置～ (ﾟ∀ﾟ)", title)
}

func tokenFailedReply(title string) string {
	return fmt.Sprintf("❌ 获取访问令牌失败\r\n\r\n📝 标题: %s\r\n请检查配置～ (ﾟ∀ﾟ)", title)
}

func stateBrokenReply() string {
	return "🤔 状态处理出错了，请重新操作～"
}

func storeErrorReply() string {
	return "❌ 内部出了点小问题，请稍后重试～ (ﾟ∀ﾟ)"
}

// Image generation replies.

func generateStartedReply(job tutu.Job, title string, plot string, shotCount int, quickMode bool) string {
	message := job.Message
	if message == "" {
		message = "图片生成中..."
	}
	quick := "关闭"
	if quickMode {
		quick = "开启"
	}
	return fmt.Sprintf("✅ %s\r\n\r\n🎨 标题: %s\r\n📝 描述: %s\r\n🔢 生成数量: %d张\r\n⚡ 快速模式: %s\r\n"+
		"📋 任务ID: #%s\r\n🔄 状态: %s\r\n\r\n🔗 请稍等片刻，图片正在生成中...\r\n\r\n"+
		"💡 发送「查询图图 %s」查看进度～", message, title, plot, shotCount, quick, job.ID, job.Status, job.ID)
}

func generateFailedReply() string {
	return "❌ 图片生成失败，请稍后重试～"
}

func queryWorkFailedReply(workID string) string {
	return fmt.Sprintf("❌ 查询失败，请稍后重试～\r\n\r\n🆔 工作ID: #%s", workID)
}

func noShotsReply(workID string) string {
	return fmt.Sprintf("❌ 未找到工作ID %s 的分镜数据", workID)
}

func shotsReply(workID string, shots []tutu.Shot, completed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📸 图图作品分镜查询结果\r\n\r\n🆔 工作ID: #%s\r\n📊 进度: %d/%d 已完成\r\n\r\n", workID, completed, len(shots))

	if completed > 0 {
		b.WriteString("✅ 已完成的分镜：\r\n")
		for _, shot := range shots {
			if !shot.Completed() {
				continue
			}
			fmt.Fprintf(&b, "🎬 分镜%d: %s\r\n", shot.Index, shortPrompt(shot.FinalPrompt))
			fmt.Fprintf(&b, "🔗 图片: %s\r\n\r\n", shot.ImageURL)
		}
	}
	if pending := len(shots) - completed; pending > 0 {
		fmt.Fprintf(&b, "⏳ 还有 %d 个分镜正在生成中...\r\n\r\n", pending)
	}
	if completed == len(shots) {
		fmt.Fprintf(&b, "✨ 图片生成完成！发送「发布图图 %s 昵称 标题」就能发布到公众号啦～", workID)
	} else {
		b.WriteString("⏰ 图片还在生成中，请稍后再查询～")
	}
	return b.String()
}

func shortPrompt(prompt string) string {
	if prompt == "" {
		return "无描述"
	}
	runes := []rune(prompt)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return prompt
}

// Work publish replies.

func publishAcceptedReply(workID string, title string, nickname string, imageCount int) string {
	return fmt.Sprintf("🚀 发布任务已开始！\r\n\r\n🆔 工作ID: #%s\r\n📝 标题: %s\r\n📱 公众号: %s\r\n🖼 图片数量: %d张\r\n\r\n"+
		"⏳ 正在后台下载并上传图片，请稍候～\r\n\r\n💡 发送「查询发布结果 %s」查看结果！", workID, title, nickname, imageCount, workID)
}

func workNotFoundReply(workID string) string {
	return fmt.Sprintf("❌ 找不到工作ID %s 的作品记录\r\n\r\n先发送「查询图图 %s」确认图片已生成完成哦～", workID, workID)
}

func alreadyPublishedReply(workID string, title string, publishedAt time.Time) string {
	return fmt.Sprintf("⚠️ 这个作品已经发布过啦！\r\n\r\n🆔 工作ID: #%s\r\n📝 标题: %s\r\n⏰ 发布时间: %s\r\n\r\n"+
		"换个标题或昵称就可以再发布一次～ (´∀｀)", workID, title, publishedAt.Format("2006-01-02 15:04:05"))
}

func noImagesReply(workID string) string {
	return fmt.Sprintf("❌ 工作ID %s 还没有生成完成的图片\r\n\r\n先发送「查询图图 %s」看看进度吧～", workID, workID)
}

func publishResultReply(workID string, work ledger.WorkRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 发布结果查询\r\n\r\n🆔 工作ID: #%s\r\n📝 作品标题: %s\r\n🖼 图片数量: %d张\r\n\r\n", workID, work.Title, len(work.ImageURLs))

	if len(work.Published) == 0 {
		fmt.Fprintf(&b, "📭 还没有发布记录呢～\r\n\r\n发送「发布图图 %s 昵称 标题」开始发布吧！", workID)
		return b.String()
	}

	fmt.Fprintf(&b, "✅ 发布记录 (共%d条)：\r\n\r\n", len(work.Published))
	for i, record := range work.Published {
		fmt.Fprintf(&b, "🔸 记录%d\r\n", i+1)
		fmt.Fprintf(&b, "   📱 公众号: %s\r\n", record.Nickname)
		fmt.Fprintf(&b, "   📝 标题: %s\r\n", record.Title)
		fmt.Fprintf(&b, "   👤 作者: %s\r\n", record.Author)
		fmt.Fprintf(&b, "   ⏰ 时间: %s\r\n", record.PublishedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "   📊 图片: %d/%d 上传成功\r\n", record.Stats.Uploaded, record.Stats.TotalImages)
		if failed := len(record.Stats.FailedDownloads) + len(record.Stats.FailedUploads); failed > 0 {
			fmt.Fprintf(&b, "   ⚠️ 失败: %d张\r\n", failed)
		}
		b.WriteString("\r\n")
	}
	b.WriteString("快去微信公众平台后台看看吧～ ✨")
	return b.String()
}

// Format-help replies.

func formatHelpReply(topic command.HelpTopic) string {
	switch topic {
	case command.HelpBind:
		return "嘿嘿~ 绑定格式不对哦！\r\n\r\n正确格式：\r\n绑定 你的AppID 你的Secret 昵称\r\n\r\n" +
			"例如：\r\n绑定 wx123456 abc123secret 我的公众号\r\n\r\n记得用空格分开哦～ (´∀｀)"
	case command.HelpPublish:
		return "嘿嘿~ 发布格式不对哦！\r\n\r\n正确格式：\r\n使用 昵称 发布 标题 内容 [作者]\r\n\r\n" +
			"例如：\r\n使用 我的公众号 发布 今日资讯 这是今天的精彩内容 小编\r\n\r\n" +
			"作者是可选的，不填默认是\"" + command.DefaultAuthor + "\"哦～ (´∀｀)"
	case command.HelpGenerate:
		return "嘿嘿~ 图图格式不对哦！\r\n\r\n正确格式：\r\n图图 标题 描述\r\n\r\n" +
			"例如：\r\n图图 春日物语 樱花树下的猫咪在打盹\r\n\r\n记得用空格分开哦～ (´∀｀)"
	case command.HelpQueryWork:
		return "嘿嘿~ 查询格式不对哦！\r\n\r\n正确格式：\r\n查询图图 任务ID\r\n\r\n例如：\r\n查询图图 12345"
	case command.HelpQueryPublish:
		return "嘿嘿~ 查询格式不对哦！\r\n\r\n正确格式：\r\n查询发布结果 任务ID\r\n\r\n例如：\r\n查询发布结果 12345"
	case command.HelpPublishWork:
		return "嘿嘿~ 发布图图格式不对哦！\r\n\r\n正确格式：\r\n发布图图 任务ID 昵称 标题 [作者]\r\n\r\n" +
			"例如：\r\n发布图图 12345 我的公众号 春日画集"
	default:
		return userHelpReply()
	}
}

// maskSecret keeps the last 8 characters readable. Short secrets come
// back unchanged, matching how they were entered.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return secret
	}
	return strings.Repeat("*", len(secret)-8) + secret[len(secret)-8:]
}

func maskAppID(appID string) string {
	if len(appID) > 8 {
		return appID[:8] + "..."
	}
	return appID
}

func maskSecretShort(secret string) string {
	if len(secret) > 4 {
		return strings.Repeat("*", 20) + secret[len(secret)-4:]
	}
	return strings.Repeat("*", len(secret))
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
