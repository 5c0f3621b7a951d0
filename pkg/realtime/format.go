package realtime

import "fmt"

// FormatCallDuration renders seconds as m:ss, or h:mm:ss from one hour up
func FormatCallDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var callStatusText = map[string]string{
	"ringing":      "Đang đổ chuông",
	"connected":    "Đã kết nối",
	"on_hold":      "Đang giữ máy",
	"transferring": "Đang chuyển tiếp",
	"ended":        "Đã kết thúc",
	"failed":       "Thất bại",
}

// CallStatusText returns the display label for a call status; unknown statuses pass through
func CallStatusText(status string) string {
	if text, ok := callStatusText[status]; ok {
		return text
	}
	return status
}
