package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

var (
	multi    *pterm.MultiPrinter
	spinners = make(map[int]*pterm.SpinnerPrinter)
	mu       sync.Mutex
)

// StartUISystem brings up the pterm multi-printer the per-account spinners
// render into.
func StartUISystem() {
	m, _ := pterm.DefaultMultiPrinter.Start()
	multi = m
}

// StopUISystem tears down the multi-printer.
func StopUISystem() {
	if multi != nil {
		multi.Stop()
	}
}

// UpdateStatus renders one account's current pipeline stage and progress
// into its spinner line.
func UpdateStatus(session model.Session, status string, remainingDelay time.Duration) {
	mu.Lock()
	defer mu.Unlock()

	delayStr := FormatDelay(remainingDelay)

	content := fmt.Sprintf(`
=============== Account %d ================
Email          : %s

Login          : %s
Desktop Search : %s
Mobile Search  : %s
Daily Check-in : %s

Points         :
- Today    %d
- Total    %d
- Available %d

Ban Severity   : %s
Status         : %s
Delay          : %s
===========================================`,
		session.AccIdx+1,
		session.Email,
		defaultString(session.LoginStatus, model.StatusWaiting),
		defaultString(session.DesktopSearch, model.StatusWaiting),
		defaultString(session.MobileSearch, model.StatusWaiting),
		defaultString(session.DailyCheckIn, model.StatusWaiting),
		session.TodayPoints,
		session.TotalPoints,
		session.AvailablePoints,
		defaultString(session.BanSeverity, "none"),
		status,
		delayStr)

	if spinner, ok := spinners[session.AccIdx]; ok {
		spinner.UpdateText(content)
	} else if multi != nil {
		spinner, _ := pterm.DefaultSpinner.
			WithWriter(multi.NewWriter()).
			WithRemoveWhenDone(false).
			Start(content)
		spinners[session.AccIdx] = spinner
	}
}

// SetSpinnerSuccess marks an account's spinner as finished successfully.
func SetSpinnerSuccess(session model.Session, finalMessage string) {
	mu.Lock()
	spinner, ok := spinners[session.AccIdx]
	mu.Unlock()
	if ok {
		UpdateStatus(session, finalMessage, 0)
		spinner.Success()
	}
}

// SetSpinnerError marks an account's spinner as failed.
func SetSpinnerError(session model.Session, finalMessage string) {
	mu.Lock()
	spinner, ok := spinners[session.AccIdx]
	mu.Unlock()
	if ok {
		UpdateStatus(session, finalMessage, 0)
		spinner.Fail()
	}
}

// FormatDelay renders a duration as "H M S" for the spinner's countdown.
func FormatDelay(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d H %02d M %02d S", h, m, s)
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
