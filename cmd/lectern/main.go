// Command lectern is the CLI tool for Lectern.
// It provides commands for managing narration projects, chapters, and
// segmentation plans.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/ids"
	"github.com/FocuswithJustin/Lectern/core/normalize"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/rows"
	"github.com/FocuswithJustin/Lectern/internal/api"
	"github.com/FocuswithJustin/Lectern/internal/archive"
	"github.com/FocuswithJustin/Lectern/internal/bulk"
	"github.com/FocuswithJustin/Lectern/internal/ingest"
	"github.com/FocuswithJustin/Lectern/internal/logging"
	"github.com/FocuswithJustin/Lectern/internal/store"
)

const version = "0.1.0"

// CLI defines the command-line interface for lectern.
var CLI struct {
	// Global flags
	DB        string `name:"db" help:"Database path" default:"lectern.db" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"text" enum:"json,text"`

	// Command groups (noun-first organization)
	Project ProjectGroup `cmd:"" help:"Project operations (create, list, export, import)"`
	Chapter ChapterGroup `cmd:"" help:"Chapter operations (add, list)"`
	Plan    PlanGroup    `cmd:"" help:"Plan operations (rows, split, merge, voice, normalize, ids)"`
	Serve   ServeCmd     `cmd:"" help:"Start REST API server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// ProjectGroup contains project lifecycle operations.
type ProjectGroup struct {
	Create ProjectCreateCmd `cmd:"" help:"Create a new project"`
	List   ProjectListCmd   `cmd:"" help:"List projects"`
	Caps   ProjectCapsCmd   `cmd:"" help:"Update a project's synthesis caps"`
	Export ProjectExportCmd `cmd:"" help:"Export a project to a bundle archive"`
	Import ProjectImportCmd `cmd:"" help:"Import a project from a bundle archive"`
}

// ChapterGroup contains chapter operations.
type ChapterGroup struct {
	Add  ChapterAddCmd  `cmd:"" help:"Add a chapter from a text or XHTML file"`
	List ChapterListCmd `cmd:"" help:"List a project's chapters"`
}

// PlanGroup contains segmentation plan operations.
type PlanGroup struct {
	Show       PlanShowCmd       `cmd:"" help:"Show the plan's display rows"`
	Split      PlanSplitCmd      `cmd:"" help:"Split a chunk at a rune offset"`
	MergeLines PlanMergeLinesCmd `cmd:"" name:"merge-lines" help:"Merge two adjacent lines of a chunk"`
	DeleteLine PlanDeleteLineCmd `cmd:"" name:"delete-line" help:"Delete a line from a chunk"`
	SetVoice   PlanSetVoiceCmd   `cmd:"" name:"set-voice" help:"Assign a voice to a line"`
	Normalize  PlanNormalizeCmd  `cmd:"" help:"Split chunks until every one fits the caps"`
	IDs        PlanIDsCmd        `cmd:"" name:"ids" help:"Standardize chunk ids to a sequential scheme"`
}

func openStore() (*store.Store, error) {
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), parseFormat(CLI.LogFormat))
	return store.Open(CLI.DB)
}

func parseFormat(name string) logging.Format {
	if name == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

// ProjectCreateCmd creates a new project.
type ProjectCreateCmd struct {
	Name           string  `arg:"" help:"Project name"`
	MaxKB          int     `help:"Payload cap in KiB" default:"4"`
	HardCapMinutes float64 `help:"Duration cap in minutes" default:"10"`
	WordsPerMinute float64 `help:"Narration pace for duration estimates" default:"165"`
	Overhead       float64 `help:"Payload overhead factor" default:"0.15"`
	MaxLines       int     `help:"Line-count cap per chunk (0 disables)" default:"0"`
}

func (c *ProjectCreateCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.CreateProject(c.Name, caps.Caps{
		MaxKB:          c.MaxKB,
		HardCapMinutes: c.HardCapMinutes,
		WordsPerMinute: c.WordsPerMinute,
		OverheadFactor: c.Overhead,
		MaxLines:       c.MaxLines,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created project %q (%s)\n", p.Name, p.ID)
	return nil
}

// ProjectListCmd lists projects.
type ProjectListCmd struct{}

func (c *ProjectListCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := st.ListProjects()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

// ProjectCapsCmd updates a project's caps configuration. Only the flags
// given on the command line change; the rest keep their stored values.
type ProjectCapsCmd struct {
	Project        string   `arg:"" help:"Project id or name"`
	MaxKB          *int     `help:"Payload cap in KiB"`
	HardCapMinutes *float64 `help:"Duration cap in minutes"`
	WordsPerMinute *float64 `help:"Narration pace for duration estimates"`
	Overhead       *float64 `help:"Payload overhead factor"`
	MaxLines       *int     `help:"Line-count cap per chunk (0 disables)"`
}

// Apply overlays the set flags onto the stored caps.
func (c *ProjectCapsCmd) Apply(cfg caps.Caps) caps.Caps {
	if c.MaxKB != nil {
		cfg.MaxKB = *c.MaxKB
	}
	if c.HardCapMinutes != nil {
		cfg.HardCapMinutes = *c.HardCapMinutes
	}
	if c.WordsPerMinute != nil {
		cfg.WordsPerMinute = *c.WordsPerMinute
	}
	if c.Overhead != nil {
		cfg.OverheadFactor = *c.Overhead
	}
	if c.MaxLines != nil {
		cfg.MaxLines = *c.MaxLines
	}
	return cfg
}

func (c *ProjectCapsCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetProject(c.Project)
	if err != nil {
		return err
	}
	return st.SetProjectCaps(p.ID, c.Apply(p.Caps))
}

// ProjectExportCmd exports a project to a bundle archive.
type ProjectExportCmd struct {
	Project     string `arg:"" help:"Project id or name"`
	Out         string `required:"" help:"Output bundle path" type:"path"`
	Compression string `help:"Compression type (xz, gzip)" default:"xz" enum:"xz,gzip"`
}

func (c *ProjectExportCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := archive.Export(st, c.Project, c.Out, archive.CompressionType(c.Compression)); err != nil {
		return err
	}
	fmt.Printf("Exported project to %s\n", c.Out)
	return nil
}

// ProjectImportCmd imports a project from a bundle archive.
type ProjectImportCmd struct {
	Path string `arg:"" help:"Bundle archive path" type:"existingfile"`
	Name string `help:"Override the imported project name"`
}

func (c *ProjectImportCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := archive.Import(st, c.Path, c.Name)
	if err != nil {
		return err
	}
	fmt.Printf("Imported project %q (%s)\n", p.Name, p.ID)
	return nil
}

// ChapterAddCmd adds a chapter from a text or XHTML file.
type ChapterAddCmd struct {
	Project string `arg:"" help:"Project id or name"`
	Path    string `arg:"" help:"Path to .txt or .xhtml file" type:"existingfile"`
	Title   string `help:"Chapter title (defaults to the file name)"`
}

func (c *ChapterAddCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetProject(c.Project)
	if err != nil {
		return err
	}
	buf, err := ingest.Load(c.Path)
	if err != nil {
		return err
	}
	title := c.Title
	if title == "" {
		title = c.Path
	}
	ch, err := st.AddChapter(p.ID, title, buf.String())
	if err != nil {
		return err
	}
	fmt.Printf("Added chapter %q (%s), %d runes\n", ch.Title, ch.ID, buf.Len())
	return nil
}

// ChapterListCmd lists a project's chapters.
type ChapterListCmd struct {
	Project string `arg:"" help:"Project id or name"`
}

func (c *ChapterListCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetProject(c.Project)
	if err != nil {
		return err
	}
	chapters, err := st.ListChapters(p.ID)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		fmt.Println("No chapters found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tID\tTITLE")
	for _, ch := range chapters {
		fmt.Fprintf(w, "%d\t%s\t%s\n", ch.Position, ch.ID, ch.Title)
	}
	return w.Flush()
}

// PlanShowCmd prints the plan's display rows.
type PlanShowCmd struct {
	Chapter  string `arg:"" help:"Chapter id"`
	Voice    string `help:"Only rows with this voice"`
	Unvoiced bool   `help:"Only rows with no voice assigned"`
	Snippet  int    `help:"Snippet length in runes" default:"80"`
	JSON     bool   `help:"Emit rows as JSON"`
}

func (c *PlanShowCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, buf, err := st.LoadPlan(c.Chapter)
	if err != nil {
		return err
	}
	out := rows.Project(p, buf, rows.Options{
		SnippetRunes: c.Snippet,
		Voice:        c.Voice,
		UnvoicedOnly: c.Unvoiced,
	})
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tRANGE\tVOICE\tSNIPPET")
	for _, r := range out {
		fmt.Fprintf(w, "%s\t[%d,%d]\t%s\t%s\n", r.Key, r.Start, r.End, r.Voice, r.Snippet)
	}
	return w.Flush()
}

// PlanSplitCmd splits a chunk at a rune offset.
type PlanSplitCmd struct {
	Chapter string `arg:"" help:"Chapter id"`
	Chunk   int    `arg:"" help:"Chunk index"`
	At      int    `arg:"" help:"Rune offset of the new boundary"`
}

func (c *PlanSplitCmd) Run() error {
	return mutatePlan(c.Chapter, func(p plan.Plan) plan.Plan {
		return p.SplitChunk(c.Chunk, c.At)
	})
}

// PlanMergeLinesCmd merges two adjacent lines of a chunk.
type PlanMergeLinesCmd struct {
	Chapter string `arg:"" help:"Chapter id"`
	Chunk   int    `arg:"" help:"Chunk index"`
	LineA   int    `arg:"" help:"First line index"`
	LineB   int    `arg:"" help:"Second line index"`
}

func (c *PlanMergeLinesCmd) Run() error {
	return mutatePlan(c.Chapter, func(p plan.Plan) plan.Plan {
		return p.MergeLines(c.Chunk, c.LineA, c.LineB)
	})
}

// PlanDeleteLineCmd deletes a line from a chunk.
type PlanDeleteLineCmd struct {
	Chapter string `arg:"" help:"Chapter id"`
	Chunk   int    `arg:"" help:"Chunk index"`
	Line    int    `arg:"" help:"Line index"`
}

func (c *PlanDeleteLineCmd) Run() error {
	return mutatePlan(c.Chapter, func(p plan.Plan) plan.Plan {
		return p.DeleteLine(c.Chunk, c.Line)
	})
}

// PlanSetVoiceCmd assigns a voice to a line.
type PlanSetVoiceCmd struct {
	Chapter string `arg:"" help:"Chapter id"`
	Chunk   int    `arg:"" help:"Chunk index"`
	Line    int    `arg:"" help:"Line index"`
	Voice   string `arg:"" optional:"" help:"Voice name (omit to clear the assignment)"`
}

func (c *PlanSetVoiceCmd) Run() error {
	return mutatePlan(c.Chapter, func(p plan.Plan) plan.Plan {
		return p.SetLineVoice(c.Chunk, c.Line, c.Voice)
	})
}

// PlanNormalizeCmd splits chunks until every one fits the project caps.
type PlanNormalizeCmd struct {
	Chapter string `arg:"" optional:"" help:"Chapter id (omit with --project for all chapters)"`
	Project string `help:"Normalize every chapter of this project"`
	Workers int    `help:"Concurrent chapter workers for --project" default:"0"`
}

func (c *PlanNormalizeCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if c.Project != "" {
		results, err := bulk.NormalizeProject(st, c.Project, c.Workers)
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.Err != nil {
				fmt.Printf("%s: error: %v\n", res.ChapterID, res.Err)
				continue
			}
			fmt.Printf("%s: %d chunks, %d unsatisfiable\n", res.ChapterID, res.Chunks, len(res.Reports))
		}
		return nil
	}
	if c.Chapter == "" {
		return fmt.Errorf("either a chapter id or --project is required")
	}

	p, buf, err := st.LoadPlan(c.Chapter)
	if err != nil {
		return err
	}
	ch, err := st.GetChapter(c.Chapter)
	if err != nil {
		return err
	}
	project, err := st.GetProject(ch.ProjectID)
	if err != nil {
		return err
	}
	out, reports := normalize.Run(p, buf, project.Caps)
	if err := st.SavePlan(c.Chapter, out, buf.Fingerprint()); err != nil {
		return err
	}
	fmt.Printf("Normalized: %d chunks\n", len(out.Chunks))
	for _, rep := range reports {
		fmt.Printf("  cannot satisfy caps: chunk %s (%s)\n", rep.ChunkID, rep.Reason)
	}
	return nil
}

// PlanIDsCmd standardizes chunk ids to a sequential scheme.
type PlanIDsCmd struct {
	Chapter string `arg:"" help:"Chapter id"`
	DryRun  bool   `help:"Print the proposals without applying them"`
}

func (c *PlanIDsCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, buf, err := st.LoadPlan(c.Chapter)
	if err != nil {
		return err
	}
	props := ids.ProposeSequentialIDs(p)
	for _, prop := range props {
		old := prop.OldID
		if old == "" {
			old = "(none)"
		}
		fmt.Printf("  %s -> %s\n", old, prop.NewID)
	}
	if c.DryRun {
		return nil
	}
	return st.SavePlan(c.Chapter, ids.ApplySequentialIDs(p, props), buf.Fingerprint())
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Host string `help:"Bind address" default:"127.0.0.1"`
	Port int    `help:"HTTP server port" default:"8080"`
}

func (c *ServeCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(st)
	return srv.Start(ctx, api.Config{Host: c.Host, Port: c.Port})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("lectern version %s\n", version)
	return nil
}

// mutatePlan runs the load, apply, save cycle shared by the single-shot
// plan editing commands.
func mutatePlan(chapterID string, apply func(plan.Plan) plan.Plan) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, buf, err := st.LoadPlan(chapterID)
	if err != nil {
		return err
	}
	out := apply(p)
	if err := st.SavePlan(chapterID, out, buf.Fingerprint()); err != nil {
		return err
	}
	fmt.Printf("Plan saved: %d chunks\n", len(out.Chunks))
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("lectern"),
		kong.Description("Lectern - TTS manuscript segmentation planner"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
