// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a catalog message.
type Key string

// Error messages.
const (
	MissingAPIKey   Key = "error.missing_api_key"
	InvalidResponse Key = "error.invalid_response"
	HTTPErrorBody   Key = "error.http_body"
	HTTPError       Key = "error.http"
	DecodeFailed    Key = "error.decode"
	NoContent       Key = "error.no_content"
	PollTimeout     Key = "error.poll_timeout"
	NetDNS          Key = "error.net_dns"
	NetOffline      Key = "error.net_offline"
	NetTimeout      Key = "error.net_timeout"
	NetOther        Key = "error.net_other"
)

// Prefixes and terminal notices.
const (
	PrefixChat      Key = "prefix.chat"
	PrefixImage     Key = "prefix.image"
	PrefixVideo     Key = "prefix.video"
	Join            Key = "join"
	Cancelled       Key = "cancelled.chat"
	ImageCancelled  Key = "cancelled.image"
	VideoCancelled  Key = "cancelled.video"
	EmptyReply      Key = "chat.empty_reply"
	ImageDone       Key = "image.done"
	ImageNoLink     Key = "image.no_link"
	VideoNoLink     Key = "video.no_link"
	Thinking        Key = "status.thinking"
	GeneratingImage Key = "status.generating_image"
	GeneratingVideo Key = "status.generating_video"
)

// Attachment descriptions.
const (
	AttachedImage    Key = "attach.image_header"
	ImageDimensions  Key = "attach.image_dims"
	ImageUnparseable Key = "attach.image_unknown"
	AttachedFile     Key = "attach.file_header"
	SelectedFile     Key = "attach.selected_file"
	FilePath         Key = "attach.file_path"
	FileNonText      Key = "attach.file_non_text"
	FileReadFailed   Key = "attach.file_read_failed"
	NewConversation  Key = "conversation.new"
	ModeChat         Key = "mode.chat"
	ModeImage        Key = "mode.image"
	ModeVideo        Key = "mode.video"
)

// Transcript labels.
const (
	LabelUser      Key = "label.user"
	LabelAssistant Key = "label.assistant"
	LabelImage     Key = "label.image"
	LabelFile      Key = "label.file"
)

type entry struct {
	key Key
	zh  string
	en  string
}

var entries = []entry{
	{MissingAPIKey, "未配置智谱 API Key，请运行 glmchat config set-key 或设置环境变量 ZHIPU_API_KEY。",
		"Zhipu API key is not configured. Run glmchat config set-key or set ZHIPU_API_KEY."},
	{InvalidResponse, "服务器响应无效，请稍后重试。", "The server returned an invalid response. Please try again later."},
	{HTTPErrorBody, "服务器返回错误（%s）: %s", "Server returned an error (%s): %s"},
	{HTTPError, "服务器返回错误（%s）。", "Server returned an error (%s)."},
	{DecodeFailed, "无法解析服务器响应，请稍后重试。", "Could not decode the server response. Please try again later."},
	{NoContent, "模型没有返回任何内容。", "The model returned no content."},
	{PollTimeout, "等待结果超时，请稍后重试。", "Timed out waiting for the result. Please try again later."},
	{NetDNS, "无法解析服务器地址，请检查网络或 DNS 设置。", "Could not resolve the server address. Check your network or DNS settings."},
	{NetOffline, "网络连接不可用，请检查网络后重试。", "The network is unavailable. Check your connection and try again."},
	{NetTimeout, "网络请求超时，请稍后重试。", "The network request timed out. Please try again later."},
	{NetOther, "网络请求失败：%s", "Network request failed: %s"},

	{PrefixChat, "请求失败", "Request failed"},
	{PrefixImage, "图片生成失败", "Image generation failed"},
	{PrefixVideo, "视频生成失败", "Video generation failed"},
	{Join, "%s：%s", "%s: %s"},
	{Cancelled, "请求已取消。", "Request cancelled."},
	{ImageCancelled, "图片生成已取消。", "Image generation cancelled."},
	{VideoCancelled, "视频生成已取消。", "Video generation cancelled."},
	{EmptyReply, "（模型没有返回文本）", "(The model returned no text.)"},
	{ImageDone, "图片已生成", "Image generated"},
	{ImageNoLink, "图片生成完成，但没有返回链接。", "Image generation finished but returned no link."},
	{VideoNoLink, "视频生成完成，但没有返回链接。", "Video generation finished but returned no link."},
	{Thinking, "正在思考...", "Thinking..."},
	{GeneratingImage, "正在生成图片...", "Generating image..."},
	{GeneratingVideo, "正在生成视频...", "Generating video..."},

	{AttachedImage, "附加图像信息：", "Attached image: "},
	{ImageDimensions, "一张分辨率约为 %s 的图片。", "An image of about %s pixels."},
	{ImageUnparseable, "一张图片（无法解析尺寸）。", "An image (dimensions could not be determined)."},
	{AttachedFile, "附加文件（%s）内容摘要：", "Attached file (%s) summary:"},
	{SelectedFile, "选中文件", "selected file"},
	{FilePath, "文件路径：%s", "Path: %s"},
	{FileNonText, "非纯文本文件，大小约 %s KB。", "Non-text file, about %s KB."},
	{FileReadFailed, "读取文件失败：%s", "Failed to read file: %s"},
	{NewConversation, "新会话", "New conversation"},
	{ModeChat, "对话", "Chat"},
	{ModeImage, "图片", "Image"},
	{ModeVideo, "视频", "Video"},

	{LabelUser, "我", "You"},
	{LabelAssistant, "智谱", "GLM"},
	{LabelImage, "[图片]", "[image]"},
	{LabelFile, "[文件] %s", "[file] %s"},
}

// =============================================================================
// CATALOG
// =============================================================================

// Supported lists the catalog languages, primary first.
var Supported = []language.Tag{language.SimplifiedChinese, language.English}

var (
	matcher = language.NewMatcher(Supported)
	builder = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(Supported[0]))
	for _, e := range entries {
		if err := b.SetString(language.SimplifiedChinese, string(e.key), e.zh); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", e.key, err))
		}
		if err := b.SetString(language.English, string(e.key), e.en); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", e.key, err))
		}
	}
	return b
}

// =============================================================================
// LOCALIZER
// =============================================================================

// Localizer renders catalog messages in one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for the supported language closest to lang.
// Unknown or empty tags use Simplified Chinese.
func New(lang string) *Localizer {
	tag := Supported[0]
	if lang = strings.TrimSpace(lang); lang != "" {
		if requested, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(requested)
			if conf != language.No {
				tag = Supported[idx]
			}
		}
	}
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

// Default returns the Simplified Chinese localizer.
func Default() *Localizer {
	return New("")
}

// Tag returns the language in use.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// IsChinese returns true if the localizer renders Chinese.
func (l *Localizer) IsChinese() bool {
	base, _ := l.tag.Base()
	zh, _ := language.Chinese.Base()
	return base == zh
}

// T renders the message for key with args.
func (l *Localizer) T(key Key, args ...any) string {
	return l.printer.Sprintf(string(key), args...)
}

// Join combines a prefix and a message with the locale's separator.
func (l *Localizer) Join(prefix, msg string) string {
	return l.T(Join, prefix, msg)
}
