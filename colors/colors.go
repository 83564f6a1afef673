package colors

import (
	"github.com/Daskott/relief/models"
	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
	Gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Status renders a support status label in its terminal color.
func Status(status models.SupportStatus) string {
	info, ok := models.StatusInfo[status]
	if !ok {
		return string(status)
	}

	switch status {
	case models.PENDING_SUPPORT:
		return Yellow(info.Label)
	case models.ACTIVE_SUPPORT:
		return Blue(info.Label)
	case models.COMPLETED_SUPPORT:
		return Green(info.Label)
	}
	return Gray(info.Label)
}
