package log

import (
	"context"

	"github.com/coreos/go-systemd/v22/journal"
)

// InitJournalHandler makes the package log to the systemd journal if stderr
// is connected to it, so messages carry their priority instead of going
// through the journal's plain stderr capture.
func InitJournalHandler(force bool) {
	if !force {
		isJournalStream, err := journal.StderrIsJournalStream()
		if err != nil {
			Warningf(context.Background(), "Error checking if stderr is connected to the journal: %v", err)
			return
		}
		if !isJournalStream {
			return
		}
	}

	SetHandler(func(_ context.Context, level Level, msg string) {
		_ = journal.Print(journalPriority(level), "%s", msg)
	})
}

func journalPriority(level Level) journal.Priority {
	switch {
	case level <= DebugLevel:
		return journal.PriDebug
	case level <= InfoLevel:
		return journal.PriInfo
	case level <= WarnLevel:
		return journal.PriWarning
	case level <= ErrorLevel:
		return journal.PriErr
	}
	return journal.PriCrit
}
