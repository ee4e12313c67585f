package poller

import (
	"fmt"
	"strings"
)

// Messages holds the user-facing texts of one locale.
type Messages struct {
	MissingJob        string
	Processing        string
	Retrying          string
	Completed         string
	FailurePrefix     string
	FailureFallback   string
	RemainingFormat   string
	PlaceholderFormat string
}

var catalog = map[string]Messages{
	"ja": {
		MissingJob:        "ジョブ情報が見つかりません",
		Processing:        "処理中...",
		Retrying:          "接続を再試行しています...",
		Completed:         "完了！リダイレクトしています...",
		FailurePrefix:     "エラーが発生しました: ",
		FailureFallback:   "不明なエラー",
		RemainingFormat:   "残り約 %d 秒",
		PlaceholderFormat: "推定 %d 秒",
	},
	"en": {
		MissingJob:        "Job information not found",
		Processing:        "Processing...",
		Retrying:          "Reconnecting...",
		Completed:         "Done! Redirecting...",
		FailurePrefix:     "An error occurred: ",
		FailureFallback:   "Unknown error",
		RemainingFormat:   "About %d seconds remaining",
		PlaceholderFormat: "Estimated %d seconds",
	},
}

// MessagesFor returns the catalog for locale, falling back to Japanese.
func MessagesFor(locale string) Messages {
	key := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(key, "-_"); i > 0 {
		key = key[:i]
	}
	if m, ok := catalog[key]; ok {
		return m
	}
	return catalog["ja"]
}

func (m Messages) remaining(seconds int) string {
	return fmt.Sprintf(m.RemainingFormat, seconds)
}

func (m Messages) placeholder(seconds int) string {
	return fmt.Sprintf(m.PlaceholderFormat, seconds)
}

// failureReason returns the server reason verbatim or the generic fallback.
func (m Messages) failureReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return m.FailureFallback
	}
	return reason
}
