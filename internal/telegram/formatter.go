package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kitbuilder587/wikisearch/internal/htmltext"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

const (
	maxMessageLen      = 4096 // лимит телеграма
	callbackPagePrefix = "p:"
	pageExcerptLen     = 1500
)

// FormatResults рендерит выдачу в Telegram HTML
func FormatResults(v view.ResultsView) string {
	if !v.HasResults() {
		return html.EscapeString(v.Message)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Results %d-%d of %d</b> for «%s»\n\n",
		v.Pager.First(),
		v.Pager.Last(),
		v.TotalHits,
		html.EscapeString(v.Query),
	))

	for i, card := range v.Cards {
		sb.WriteString(fmt.Sprintf("%d. <a href=\"%s\">%s</a>\n",
			v.Pager.Offset+i+1,
			html.EscapeString(card.URL),
			html.EscapeString(card.Title),
		))
		if snippet := htmltext.Highlight(string(card.Snippet), "<b>", "</b>"); snippet != "" {
			sb.WriteString(snippet)
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("/page_%d\n\n", card.PageID))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Keyboard строит кнопки Prev/Next по тем же правилам, что и веб-пейджер
func Keyboard(p view.Pager) (tgbotapi.InlineKeyboardMarkup, bool) {
	if !p.Visible() {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	var row []tgbotapi.InlineKeyboardButton
	if p.ShowPrev {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« Prev", callbackPagePrefix+strconv.Itoa(p.PrevOffset)))
	}
	if p.ShowNext {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next »", callbackPagePrefix+strconv.Itoa(p.NextOffset)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

func FormatPage(pv view.PageView, excerpt string) string {
	if pv.Message != "" {
		return html.EscapeString(pv.Message)
	}

	var sb strings.Builder
	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(pv.Title))
	sb.WriteString("</b>\n\n")
	if excerpt != "" {
		sb.WriteString(html.EscapeString(excerpt))
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("<a href=\"%s\">Read on wiki</a>", html.EscapeString(pv.URL)))
	return sb.String()
}

// SplitMessage режет text на части не длиннее maxLen байт. Разрез не попадает
// внутрь тега, HTML-сущности или UTF-8 символа; теги, открытые в части,
// закрываются в ее конце и открываются заново в следующей.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		part, rest := cutMessage(text, maxLen)
		messages = append(messages, part)
		text = rest
	}

	return messages
}

func cutMessage(text string, maxLen int) (string, string) {
	budget := maxLen
	for {
		cut := safeCut(text, budget)
		open := openTags(text[:cut])
		closing := closingTags(open)
		reopen := strings.Join(open, "")

		// одни теги без текста - режем как есть, иначе не продвинемся
		if cut <= len(reopen) {
			return text[:cut], text[cut:]
		}
		if cut+len(closing) <= maxLen || budget <= 1 {
			return text[:cut] + closing, reopen + text[cut:]
		}
		budget = min(budget-1, maxLen-len(closing))
	}
}

func safeCut(text string, maxLen int) int {
	if maxLen >= len(text) {
		return len(text)
	}
	if maxLen < 1 {
		maxLen = 1
	}

	cut := findSafeSplitPoint(text, maxLen)
	if cut <= 0 || cut > maxLen {
		cut = maxLen
	}

	if start := strings.LastIndexByte(text[:cut], '<'); start >= 0 && !strings.Contains(text[start:cut], ">") {
		if start > 0 {
			cut = start
		} else if end := strings.IndexByte(text, '>'); end >= 0 {
			return end + 1
		}
	}

	// &amp; и подобные не разрываем
	if amp := strings.LastIndexByte(text[:cut], '&'); amp > 0 && !strings.Contains(text[amp:cut], ";") {
		if semi := strings.IndexByte(text[cut:], ';'); semi >= 0 && semi < 10 {
			cut = amp
		}
	}

	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		cut = size
	}
	return cut
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if i < len(text) && (text[i] == ' ' || text[i] == '\n') {
			return i + 1
		}
	}

	return maxLen
}

// openTags возвращает открывающие теги, которые в s не закрыты
func openTags(s string) []string {
	var stack []string
	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			break
		}
		tag := s[start : start+end+1]
		s = s[start+end+1:]

		name := tagName(tag)
		switch {
		case name == "":
		case strings.HasPrefix(tag, "</"):
			for i := len(stack) - 1; i >= 0; i-- {
				if tagName(stack[i]) == name {
					stack = stack[:i]
					break
				}
			}
		case !strings.HasSuffix(tag, "/>"):
			stack = append(stack, tag)
		}
	}
	return stack
}

func closingTags(open []string) string {
	var sb strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		sb.WriteString("</")
		sb.WriteString(tagName(open[i]))
		sb.WriteString(">")
	}
	return sb.String()
}

func tagName(tag string) string {
	name := strings.TrimLeft(strings.Trim(tag, "<>"), "/")
	if i := strings.IndexAny(name, " \t\n/"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}
