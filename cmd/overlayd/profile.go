package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/store"
)

func printProfileUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  overlayd profile list [--all] [--json]")
	fmt.Fprintln(w, "  overlayd profile get [--json] <name>")
	fmt.Fprintln(w, "  overlayd profile save [--x N] [--y N] [--size N] [--opacity F] [--color C]")
	fmt.Fprintln(w, "                        [--target-width N] [--target-height N] [--elevated] <name>")
	fmt.Fprintln(w, "  overlayd profile delete <name>")
	fmt.Fprintln(w, "  overlayd profile duplicate <source> <new-name>")
	fmt.Fprintln(w, "  overlayd profile export <path>")
	fmt.Fprintln(w, "  overlayd profile import [--overwrite] <path>")
	fmt.Fprintln(w, "  overlayd profile stats [--json]")
	fmt.Fprintln(w, "  overlayd profile cleanup [--days N]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "All commands accept --path PATH to choose the config file.")
}

// profileEnv is what every profile subcommand needs.
type profileEnv struct {
	cfg   *config.Config
	store *store.Store
}

// openProfileEnv loads config and opens the store. Diagnostics go to stderr.
func openProfileEnv(path string) (*profileEnv, int) {
	res, err := loadConfig(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := openStore(res.Config, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, 1
	}
	return &profileEnv{cfg: res.Config, store: st}, 0
}

// notifyDaemon asks a running daemon to pick up store changes. A daemon that
// is not running is not an error.
func notifyDaemon() {
	if _, err := newDaemonClient().Reload(); err == nil {
		fmt.Fprintln(stderr, "daemon reloaded")
	}
}

func runProfile(args []string) int {
	if len(args) == 0 {
		printProfileUsage(stderr)
		return 2
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return runProfileList(rest)
	case "get":
		return runProfileGet(rest)
	case "save":
		return runProfileSave(rest)
	case "delete":
		return runProfileDelete(rest)
	case "duplicate":
		return runProfileDuplicate(rest)
	case "export":
		return runProfileExport(rest)
	case "import":
		return runProfileImport(rest)
	case "stats":
		return runProfileStats(rest)
	case "cleanup":
		return runProfileCleanup(rest)
	case "help", "-h", "--help":
		printProfileUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown profile command: %s\n\n", sub)
		printProfileUsage(stderr)
		return 2
	}
}

func newProfileFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/overlayd/config.yaml)")
	return fs, path
}

func recordRow(r store.Record) []string {
	elevated := ""
	if r.RequiresElevatedMode {
		elevated = "yes"
	}
	return []string{
		r.Name,
		strconv.Itoa(r.X),
		strconv.Itoa(r.Y),
		strconv.Itoa(r.Size),
		fmt.Sprintf("%.2f", r.Opacity),
		config.FormatColor(r.ColorARGB),
		elevated,
		time.UnixMilli(r.ModifiedAt).Format(time.DateTime),
	}
}

func runProfileList(args []string) int {
	fs, path := newProfileFlags("list")
	all := fs.Bool("all", false, "Include built-in and config profiles")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}

	if *all {
		catalog, err := daemon.Catalog(env.cfg, env.store)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if *jsonOut {
			return printJSON(catalog)
		}
		rows := make([][]string, 0, len(catalog))
		for _, p := range catalog {
			rows = append(rows, []string{
				p.ID,
				strconv.Itoa(p.BasePosition.X),
				strconv.Itoa(p.BasePosition.Y),
				strconv.Itoa(p.BaseSize),
				fmt.Sprintf("%.2f", p.Opacity),
				fmt.Sprintf("%dx%d", p.TargetWidth, p.TargetHeight),
			})
		}
		printTable([]string{"ID", "X", "Y", "SIZE", "OPACITY", "REFERENCE"}, rows)
		return 0
	}

	records := env.store.List()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	if *jsonOut {
		return printJSON(records)
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	printTable([]string{"NAME", "X", "Y", "SIZE", "OPACITY", "COLOR", "ELEVATED", "MODIFIED"}, rows)
	return 0
}

func runProfileGet(args []string) int {
	fs, path := newProfileFlags("get")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "get requires <name>")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}

	rec, err := env.store.Get(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(rec)
	}
	printFields([][2]string{
		{"name", rec.Name},
		{"id", rec.ID},
		{"position", fmt.Sprintf("%d,%d", rec.X, rec.Y)},
		{"size", strconv.Itoa(rec.Size)},
		{"opacity", fmt.Sprintf("%.2f", rec.Opacity)},
		{"color", config.FormatColor(rec.ColorARGB)},
		{"reference", fmt.Sprintf("%dx%d", rec.Profile().TargetWidth, rec.Profile().TargetHeight)},
		{"elevated", strconv.FormatBool(rec.RequiresElevatedMode)},
		{"refresh_rate", strconv.Itoa(rec.RefreshRateHint)},
		{"created", time.UnixMilli(rec.CreatedAt).Format(time.DateTime)},
		{"modified", time.UnixMilli(rec.ModifiedAt).Format(time.DateTime)},
	})
	return 0
}

func runProfileSave(args []string) int {
	fs, path := newProfileFlags("save")
	x := fs.Int("x", 0, "Base X in reference pixels")
	y := fs.Int("y", 0, "Base Y in reference pixels")
	size := fs.Int("size", 0, "Base size in reference pixels")
	opacity := fs.Float64("opacity", 0, "Opacity 0..1")
	color := fs.String("color", "", "Color as #RRGGBB or #AARRGGBB")
	targetW := fs.Int("target-width", 0, "Reference width (0 means 1920)")
	targetH := fs.Int("target-height", 0, "Reference height (0 means 1080)")
	elevated := fs.Bool("elevated", false, "Profile requires elevated mode")
	refresh := fs.Int("refresh-rate", 0, "Refresh rate hint")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "save requires <name>")
		return 2
	}
	name := fs.Arg(0)

	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}

	fields := store.DefaultFields()
	if rec, err := env.store.Get(name); err == nil {
		fields = rec.Fields()
	}

	var colorErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "x":
			fields.X = *x
		case "y":
			fields.Y = *y
		case "size":
			fields.Size = *size
		case "opacity":
			fields.Opacity = *opacity
		case "color":
			fields.ColorARGB, colorErr = config.ParseColor(*color)
		case "target-width":
			fields.TargetWidth = *targetW
		case "target-height":
			fields.TargetHeight = *targetH
		case "elevated":
			fields.RequiresElevatedMode = *elevated
		case "refresh-rate":
			fields.RefreshRateHint = *refresh
		}
	})
	if colorErr != nil {
		fmt.Fprintln(stderr, colorErr)
		return 2
	}

	saved, err := env.store.Save(name, fields)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "saved %s\n", saved.Name)
	notifyDaemon()
	return 0
}

func runProfileDelete(args []string) int {
	fs, path := newProfileFlags("delete")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "delete requires <name>")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	if err := env.store.Delete(fs.Arg(0)); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "deleted %s\n", fs.Arg(0))
	notifyDaemon()
	return 0
}

func runProfileDuplicate(args []string) int {
	fs, path := newProfileFlags("duplicate")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "duplicate requires <source> <new-name>")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	dup, err := env.store.Duplicate(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "duplicated %s to %s\n", fs.Arg(0), dup.Name)
	notifyDaemon()
	return 0
}

func runProfileExport(args []string) int {
	fs, path := newProfileFlags("export")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "export requires <path>")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	out, err := config.ExpandHome(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := env.store.Export(out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "exported %d profiles to %s\n", len(env.store.List()), out)
	return 0
}

func runProfileImport(args []string) int {
	fs, path := newProfileFlags("import")
	overwrite := fs.Bool("overwrite", false, "Replace profiles that already exist")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "import requires <path>")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	in, err := config.ExpandHome(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	res, err := env.store.Import(in, *overwrite)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, e := range res.Errors {
		fmt.Fprintf(stderr, "skipped: %v\n", e)
	}
	fmt.Fprintf(stdout, "imported %d (added %d, replaced %d), skipped %d existing, %d malformed\n",
		res.Imported(), res.Added, res.Replaced, res.Skipped, res.Malformed)
	if res.Imported() > 0 {
		notifyDaemon()
	}
	return 0
}

func runProfileStats(args []string) int {
	fs, path := newProfileFlags("stats")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	stats := env.store.Stats()
	if *jsonOut {
		return printJSON(stats)
	}
	printFields([][2]string{
		{"total", strconv.Itoa(stats.Total)},
		{"elevated", strconv.Itoa(stats.Elevated)},
		{"oldest", stats.Oldest},
		{"newest", stats.Newest},
	})
	return 0
}

func runProfileCleanup(args []string) int {
	fs, path := newProfileFlags("cleanup")
	days := fs.Int("days", 30, "Remove profiles not modified in this many days")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *days < 0 {
		fmt.Fprintln(stderr, "--days must be >= 0")
		return 2
	}
	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	removed, err := env.store.Cleanup(time.Duration(*days) * 24 * time.Hour)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, name := range removed {
		fmt.Fprintf(stdout, "removed %s\n", name)
	}
	if len(removed) > 0 {
		notifyDaemon()
	}
	return 0
}

func runResolve(args []string) int {
	fs, path := newProfileFlags("resolve")
	width := fs.Int("width", 1920, "Screen width in pixels")
	height := fs.Int("height", 1080, "Screen height in pixels")
	density := fs.Float64("density", 1, "Density (dpi/96)")
	orientation := fs.String("orientation", "", "portrait, landscape, reverse-portrait or reverse-landscape (default: from width and height)")
	jsonOut := fs.Bool("json", false, "Output JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: overlayd resolve [--width N] [--height N] [--density F] [--orientation O] [--json] <profile>")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Compute where <profile> places the overlay on the given screen.")
		fmt.Fprintln(stderr, "An unknown profile falls back to the default.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	m, err := resolveMetrics(*width, *height, *density, *orientation)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	env, code := openProfileEnv(*path)
	if env == nil {
		return code
	}
	reg, err := daemon.NewRegistry(env.cfg, env.store)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	pv, err := daemon.PreviewPlacement(env.cfg, reg, fs.Arg(0), m, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(pv)
	}
	printFields([][2]string{
		{"profile", pv.ProfileID},
		{"known", strconv.FormatBool(pv.Known)},
		{"suitable", strconv.FormatBool(pv.Suitable)},
		{"x", strconv.Itoa(pv.Placement.X)},
		{"y", strconv.Itoa(pv.Placement.Y)},
		{"size", strconv.Itoa(pv.Placement.Size)},
	})
	return 0
}

func resolveMetrics(width, height int, density float64, orientation string) (geometry.ScreenMetrics, error) {
	if width <= 0 || height <= 0 {
		return geometry.ScreenMetrics{}, errors.New("--width and --height must be > 0")
	}
	if density <= 0 {
		return geometry.ScreenMetrics{}, errors.New("--density must be > 0")
	}
	m := geometry.ScreenMetrics{WidthPx: width, HeightPx: height, Density: density}
	switch {
	case orientation != "":
		o, err := geometry.ParseOrientation(orientation)
		if err != nil {
			return geometry.ScreenMetrics{}, err
		}
		m.Orientation = o
	case width > height:
		m.Orientation = geometry.OrientationLandscape
	default:
		m.Orientation = geometry.OrientationPortrait
	}
	return m, nil
}

