package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var (
	activityFollow   bool
	activityIssue    string
	activitySince    string
	activityType     string
	activityLimit    int
	activityInterval time.Duration
	activityPoll     bool
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	GroupID: GroupViews,
	Short:   "Show the feed of issue events",
	Long: `Display the event log across all issues.

Event symbols:
  +  created          - New issue
  →  status changed   - Work started or status moved
  ✓  closed           - Issue closed
  ↺  reopened         - Issue reopened
  💬 commented        - Comment added
  ⊕/⊖ dependency      - Dependency added or removed

Examples:
  bd activity                  # Show the last 100 events
  bd activity --follow         # Stream new events as they are written
  bd activity --issue bd-x7k   # Filter by issue ID prefix
  bd activity --since 2d       # Events from the last two days
  bd activity --type closed    # Only close events`,
	Args: cobra.NoArgs,
	Run:  runActivity,
}

func init() {
	activityCmd.Flags().BoolVarP(&activityFollow, "follow", "f", false, "Stream events as they happen")
	activityCmd.Flags().StringVar(&activityIssue, "issue", "", "Filter by issue ID prefix")
	activityCmd.Flags().StringVar(&activitySince, "since", "", "Show events since duration (e.g., 5m, 1h, 2d)")
	activityCmd.Flags().StringVar(&activityType, "type", "", "Filter by event type (created, closed, commented, ...)")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 100, "Maximum number of events to show")
	activityCmd.Flags().DurationVar(&activityInterval, "interval", 500*time.Millisecond, "Polling interval when file events are unavailable")
	activityCmd.Flags().BoolVar(&activityPoll, "poll", false, "Force polling instead of file system notifications")

	rootCmd.AddCommand(activityCmd)
}

func runActivity(_ *cobra.Command, _ []string) {
	var since time.Time
	if activitySince != "" {
		d, err := parseDurationString(activitySince)
		if err != nil {
			FatalError("invalid --since duration: %v", err)
		}
		since = time.Now().Add(-d)
	}

	events, err := store.GetEventsSince(rootCtx, 0, 0)
	if err != nil {
		FatalErrorRespectJSON("%v", err)
	}
	var lastID int64
	if n := len(events); n > 0 {
		lastID = events[n-1].ID
	}
	events = filterEvents(events, since)
	if activityLimit > 0 && len(events) > activityLimit {
		events = events[len(events)-activityLimit:]
	}

	if !activityFollow {
		if jsonOutput {
			if events == nil {
				events = []*types.Event{}
			}
			outputJSON(events)
			return
		}
		if len(events) == 0 {
			fmt.Println("No recent activity")
			return
		}
		for _, e := range events {
			printEvent(e)
		}
		return
	}

	for _, e := range events {
		emitFollowEvent(e)
	}
	followActivity(lastID, since)
}

// followActivity tails the event log after lastID until interrupted.
func followActivity(lastID int64, since time.Time) {
	w := newDBWatcher(dbPath, activityInterval, activityPoll)
	w.Start(rootCtx)
	defer func() { _ = w.Close() }()

	if w.IsPolling() {
		debug.Logf("activity: polling %s every %v\n", dbPath, activityInterval)
	}
	if !jsonOutput {
		fmt.Fprintln(os.Stderr, ui.RenderMuted("Streaming activity (Ctrl+C to stop)..."))
	}

	for {
		select {
		case <-rootCtx.Done():
			return
		case _, ok := <-w.Events():
			if !ok {
				return
			}
			events, err := store.GetEventsSince(rootCtx, lastID, 0)
			if err != nil {
				if rootCtx.Err() != nil {
					return
				}
				fmt.Fprintf(os.Stderr, "Error reading events: %v\n", err)
				continue
			}
			for _, e := range events {
				lastID = e.ID
			}
			for _, e := range filterEvents(events, since) {
				emitFollowEvent(e)
			}
		}
	}
}

// emitFollowEvent prints one line per event: JSON under --json.
func emitFollowEvent(e *types.Event) {
	if jsonOutput {
		outputJSONLine(e)
		return
	}
	printEvent(e)
}

func filterEvents(events []*types.Event, since time.Time) []*types.Event {
	if activityIssue == "" && activityType == "" && since.IsZero() {
		return events
	}
	filtered := make([]*types.Event, 0, len(events))
	for _, e := range events {
		if activityIssue != "" && !strings.HasPrefix(e.IssueID, activityIssue) {
			continue
		}
		if activityType != "" && string(e.EventType) != activityType {
			continue
		}
		if !since.IsZero() && e.CreatedAt.Before(since) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// eventSymbol returns the coloured feed symbol for an event type.
func eventSymbol(t types.EventType) string {
	switch t {
	case types.EventCreated:
		return ui.RenderPass("+")
	case types.EventClosed:
		return ui.RenderPass("✓")
	case types.EventReopened:
		return ui.RenderAccent("↺")
	case types.EventStatusChanged, types.EventClaimed:
		return ui.RenderWarn("→")
	case types.EventUpdated:
		return ui.RenderWarn("•")
	case types.EventCommented:
		return ui.RenderAccent("💬")
	case types.EventDependencyAdded:
		return ui.RenderAccent("⊕")
	case types.EventDependencyRemoved:
		return ui.RenderFail("⊖")
	case types.EventLabelAdded:
		return ui.RenderAccent("#")
	case types.EventLabelRemoved:
		return ui.RenderMuted("#")
	default:
		return "•"
	}
}

// eventMessage describes an event in a few words.
func eventMessage(e *types.Event) string {
	switch e.EventType {
	case types.EventStatusChanged:
		if e.OldValue != nil && e.NewValue != nil {
			return fmt.Sprintf("%s → %s", *e.OldValue, *e.NewValue)
		}
	case types.EventClosed:
		if e.Comment != nil && *e.Comment != "" {
			return "closed: " + truncateString(*e.Comment, 60)
		}
	case types.EventDependencyAdded, types.EventDependencyRemoved, types.EventLabelAdded, types.EventLabelRemoved:
		if e.NewValue != nil {
			return fmt.Sprintf("%s %s", strings.ReplaceAll(string(e.EventType), "_", " "), *e.NewValue)
		}
		if e.OldValue != nil {
			return fmt.Sprintf("%s %s", strings.ReplaceAll(string(e.EventType), "_", " "), *e.OldValue)
		}
	case types.EventCommented:
		if e.Comment != nil {
			return "comment: " + truncateString(*e.Comment, 60)
		}
	}
	return strings.ReplaceAll(string(e.EventType), "_", " ")
}

// printEvent prints "[HH:MM:SS] symbol issue message @actor".
func printEvent(e *types.Event) {
	line := fmt.Sprintf("[%s] %s %s %s",
		e.CreatedAt.Local().Format("15:04:05"), eventSymbol(e.EventType), ui.RenderID(e.IssueID), eventMessage(e))
	if e.Actor != "" {
		line += " " + ui.RenderMuted("@"+e.Actor)
	}
	fmt.Println(line)
}

var durationDaysRe = regexp.MustCompile(`^(\d+)d$`)

// parseDurationString accepts Go durations plus a whole-day form such as "2d".
func parseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if m := durationDaysRe.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}
