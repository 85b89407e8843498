package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/ipc"
)

// newDaemonClient is swapped by tests.
var newDaemonClient = func() *ipc.Client { return ipc.NewClient() }

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "Output JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: overlayd status [--json]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	st, err := newDaemonClient().Status()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(st)
	}
	printFields(statusFields(st))
	return 0
}

func statusFields(st *daemon.Status) [][2]string {
	target := st.Target
	if target == "" {
		target = "(none)"
	}
	visible := "hidden"
	if st.Overlay.Visible {
		visible = "shown"
	}
	m := st.Metrics
	fields := [][2]string{
		{"target", target},
		{"profile", st.ProfileID},
		{"known", strconv.FormatBool(st.Known)},
		{"overlay", visible},
		{"position", fmt.Sprintf("%d,%d", st.Overlay.Position.X, st.Overlay.Position.Y)},
		{"size", strconv.Itoa(st.Overlay.Size)},
		{"opacity", fmt.Sprintf("%.2f", st.Overlay.Opacity)},
		{"screen", fmt.Sprintf("%dx%d @%.2f %s", m.WidthPx, m.HeightPx, m.Density, m.Orientation)},
		{"samples", strconv.FormatUint(st.Detection.SampleCount, 10)},
		{"profiles", strconv.Itoa(st.Profiles)},
		{"uptime", (time.Duration(st.UptimeSeconds) * time.Second).String()},
	}
	if st.Reason != "" {
		fields = append(fields, [2]string{"reason", st.Reason})
	}
	return fields
}

func runShow(args []string) int {
	return runVisibility("show", args, func(c *ipc.Client) error {
		_, err := c.Show()
		return err
	})
}

func runHide(args []string) int {
	return runVisibility("hide", args, func(c *ipc.Client) error {
		_, err := c.Hide()
		return err
	})
}

func runVisibility(name string, args []string, call func(*ipc.Client) error) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: overlayd %s\n", name)
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "%s takes no arguments\n", name)
		return 2
	}
	if err := call(newDaemonClient()); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: overlayd reload")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Re-read config and stored profiles in the running daemon.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "reload takes no arguments")
		return 2
	}
	data, err := newDaemonClient().Reload()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "reloaded: %d profiles (%d skipped)\n", data.Profiles, data.Skipped)
	return 0
}

func runSavePosition(args []string) int {
	fs := flag.NewFlagSet("save-position", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: overlayd save-position <name>")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Save where the overlay was last dragged to as profile <name>.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	data, err := newDaemonClient().SavePosition(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "saved %s at %d,%d size %d\n", data.Name, data.X, data.Y, data.Size)
	return 0
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "Output JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: overlayd inspect [--json]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "List the interactive elements of the focused window.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	elements, err := newDaemonClient().Inspect()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(elements)
	}
	rows := make([][]string, 0, len(elements))
	for _, el := range elements {
		b := el.Bounds
		rows = append(rows, []string{
			strconv.Itoa(b.X), strconv.Itoa(b.Y), strconv.Itoa(b.Width), strconv.Itoa(b.Height),
		})
	}
	printTable([]string{"X", "Y", "WIDTH", "HEIGHT"}, rows)
	return 0
}
