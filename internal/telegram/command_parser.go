package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kitbuilder587/wikisearch/internal/search"
)

// пространства имён для команд-ярлыков
const (
	nsFile     = "6"
	nsCategory = "14"
)

// ParseQueryCommand разбирает текст сообщения в поисковый запрос.
// /search, /category, /file задают фильтр; обычный текст - поиск по статьям.
// Неизвестная команда возвращается как есть, вместе со слешем.
func ParseQueryCommand(text string) (query string, opts search.SearchOptions) {
	text = strings.TrimSpace(text)

	if text == "" || !strings.HasPrefix(text, "/") {
		return normalizeSpaces(text), opts
	}

	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// /search@MyBot в группах
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	var rest string
	if len(parts) > 1 {
		rest = normalizeSpaces(parts[1])
	}

	switch command {
	case "/search", "/s":
		return rest, opts
	case "/category":
		opts.Filter = nsCategory
		return rest, opts
	case "/file":
		opts.Filter = nsFile
		return rest, opts
	default:
		return text, opts
	}
}

// ParsePageID понимает "/page 123" и кликабельное "/page_123"
func ParsePageID(command, args string) (int64, error) {
	raw := strings.TrimSpace(args)
	if strings.HasPrefix(command, "page_") {
		raw = strings.TrimPrefix(command, "page_")
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: no id given", search.ErrPageNotFound)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", search.ErrPageNotFound, raw)
	}
	return id, nil
}

// ParseCallbackData: "p:20" -> 20
func ParseCallbackData(data string) (offset int, ok bool) {
	raw, found := strings.CutPrefix(data, callbackPagePrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
