// objtool is a CLI utility for inspecting, baking and benchmarking OBJ models.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/fasterobj/internal/cache"
	"github.com/Faultbox/fasterobj/internal/config"
	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "bake":
		cmdBake(args)
	case "dump":
		cmdDump(args)
	case "bench":
		cmdBench(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`objtool - Wavefront OBJ model utility

Usage:
  objtool <command> [options]

Commands:
  info <model>                 Show model statistics and materials
  bake <file.obj>              Parse, compact and write a cache file
  dump <model>                 Print every batch and its indices
  bench <file.obj>             Time parse, save and load for each mode

A <model> is either an .obj file or a baked .objc file.

Common options:
  -config <path>   Config file (default: ./fasterobj.yaml or the user config dir)
  -flat            Compact without deduplication
  -no-swap         Keep the file's Y and Z axes
  -debug           Enable debug logging

Examples:
  objtool info models/elder.obj
  objtool bake -o elder.objc models/elder.obj
  objtool dump -n 12 elder.objc
  objtool bench -n 5 models/elder.obj`)
}

// common holds the options every command accepts.
type common struct {
	config *string
	flat   *bool
	noSwap *bool
	debug  *bool
}

func commonFlags(fs *flag.FlagSet) *common {
	return &common{
		config: fs.String("config", "", "Path to config file"),
		flat:   fs.Bool("flat", false, "Compact without deduplication"),
		noSwap: fs.Bool("no-swap", false, "Keep the file's Y and Z axes"),
		debug:  fs.Bool("debug", false, "Enable debug logging"),
	}
}

// setup loads the config, applies command flags and starts the logger.
func (c *common) setup() *config.Config {
	cfg, err := config.LoadFile(*c.config)
	if err != nil {
		fatal(err)
	}
	if *c.flat {
		cfg.Loader.Mode = model.ModeFlat.String()
	}
	if *c.noSwap {
		cfg.Loader.SwapYZ = false
	}
	level := cfg.Logging.Level
	if *c.debug {
		level = "debug"
	} else if level == "info" {
		// Keep stdout readable; cache and parse messages are Info.
		level = "warn"
	}
	if err := logger.Init(level, cfg.Logging.LogFile); err != nil {
		fatal(err)
	}
	return cfg
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logger.Sync()
	os.Exit(1)
}

// openModel loads an OBJ file or a cache file, by extension.
func openModel(path string, cfg *config.Config) *model.Model {
	if strings.EqualFold(filepath.Ext(path), cache.Ext) {
		m, err := cache.Load(path, cache.LoadOptions{})
		if err != nil {
			fatal(err)
		}
		return m
	}

	opts, err := cfg.Loader.Options()
	if err != nil {
		fatal(err)
	}
	m, err := model.Load(path, opts)
	if err != nil {
		fatal(err)
	}
	return m
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	c := commonFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool info <model>")
		os.Exit(1)
	}
	cfg := c.setup()
	defer logger.Sync()

	m := openModel(fs.Arg(0), cfg)
	st := m.Stats()
	b := m.Bounds()

	fmt.Printf("Model: %s\n", m.Name)
	fmt.Printf("Mode: %s\n", m.Mode)
	fmt.Printf("Vertices: %d\n", st.Vertices)
	fmt.Printf("Indices: %d\n", st.Indices)
	fmt.Printf("Faces: %d (%d triangles, %d quads, %d polygons)\n",
		st.Faces, st.Triangles, st.Quads, st.Polygons)
	fmt.Printf("Batches: %d in %d material runs\n", st.Batches, st.Materials)
	fmt.Printf("Bounds: min %v max %v\n", b.Min, b.Max)
	fmt.Printf("Center: %v  Radius: %.4f\n", b.Center(), b.Radius())

	if len(m.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range m.Sources {
			fmt.Printf("  %s\n", s)
		}
	}

	if len(m.Materials) > 0 {
		fmt.Println("\nMaterials:")
		for _, mb := range m.Materials {
			name := mb.Material
			if name == "" {
				name = "(none)"
			}
			mat := m.Material(mb.Material)
			switch {
			case mb.Material == "":
				fmt.Printf("  %-24s %d batches\n", name, len(mb.Batches))
			case mat == nil:
				fmt.Printf("  %-24s %d batches  undefined\n", name, len(mb.Batches))
			case mat.Image != nil:
				fmt.Printf("  %-24s %d batches  %s (%dx%d)\n", name, len(mb.Batches),
					mat.Texture, mat.Image.Width, mat.Image.Height)
			default:
				kd := mat.Diffuse()
				fmt.Printf("  %-24s %d batches  Kd %.3f %.3f %.3f\n", name, len(mb.Batches), kd[0], kd[1], kd[2])
			}
		}
	}
}

func cmdBake(args []string) {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	c := commonFlags(fs)
	output := fs.String("o", "", "Output file (default: cache dir from config)")
	raw := fs.Bool("raw", false, "Write the body uncompressed")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool bake [-o file.objc] <file.obj>")
		os.Exit(1)
	}
	cfg := c.setup()
	defer logger.Sync()

	source := fs.Arg(0)
	m := openModel(source, cfg)

	path := *output
	if path == "" {
		path = cache.PathFor(cfg.Cache.Dir, source)
	}
	compress := cfg.Cache.Compress && !*raw
	if err := cache.Save(path, m, compress); err != nil {
		fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Baked: %s (%d vertices, %d batches, %d bytes)\n",
		path, m.VertexCount(), m.BatchCount(), info.Size())
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	c := commonFlags(fs)
	limit := fs.Int("n", 24, "Indices shown per batch (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool dump [-n count] <model>")
		os.Exit(1)
	}
	cfg := c.setup()
	defer logger.Sync()

	m := openModel(fs.Arg(0), cfg)
	fmt.Printf("%s: %s, %d vertices\n", m.Name, m.Mode, m.VertexCount())

	for _, mb := range m.Materials {
		fmt.Printf("\nusemtl %q\n", mb.Material)
		for i, b := range mb.Batches {
			fmt.Printf("  [%d] %-9s tex=%-5v norm=%-5v faces=%d", i, b.Primitive, b.HasTexCoord, b.HasNormal, b.Faces)
			if b.Indices == nil {
				fmt.Printf(" vertices %d..%d\n", b.Offset, b.Offset+b.Count)
				continue
			}
			fmt.Printf(" indices=%d\n", len(b.Indices))
			shown := b.Indices
			if *limit > 0 && len(shown) > *limit {
				shown = shown[:*limit]
			}
			fmt.Printf("      %v", shown)
			if len(shown) < len(b.Indices) {
				fmt.Printf(" ... (%d more)", len(b.Indices)-len(shown))
			}
			fmt.Println()
		}
	}
}

func cmdBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	c := commonFlags(fs)
	rounds := fs.Int("n", 3, "Rounds per mode")
	fs.Parse(args)

	if fs.NArg() < 1 || *rounds < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool bench [-n rounds] <file.obj>")
		os.Exit(1)
	}
	cfg := c.setup()
	defer logger.Sync()

	opts, err := cfg.Loader.Options()
	if err != nil {
		fatal(err)
	}
	dir, err := os.MkdirTemp("", "objtool-bench-")
	if err != nil {
		fatal(err)
	}
	defer os.RemoveAll(dir)

	source := fs.Arg(0)
	fmt.Printf("benchmarking %s, %d rounds per mode\n", source, *rounds)
	fmt.Printf("%-8s %-10s %10s %10s %10s %10s %12s\n", "mode", "compress", "vertices", "parse", "save", "load", "size")

	for _, mode := range []model.Mode{model.ModeIndexed, model.ModeFlat} {
		for _, compress := range []bool{false, true} {
			opts.Mode = mode
			path := filepath.Join(dir, fmt.Sprintf("%s-%v%s", mode, compress, cache.Ext))

			var parse, save, load time.Duration
			var vertices int
			for i := 0; i < *rounds; i++ {
				start := time.Now()
				m, err := model.Load(source, opts)
				if err != nil {
					fatal(err)
				}
				parse += time.Since(start)
				vertices = m.VertexCount()

				start = time.Now()
				if err := cache.Save(path, m, compress); err != nil {
					fatal(err)
				}
				save += time.Since(start)

				start = time.Now()
				if _, err := cache.Load(path, cache.LoadOptions{}); err != nil {
					fatal(err)
				}
				load += time.Since(start)
			}

			info, err := os.Stat(path)
			if err != nil {
				fatal(err)
			}
			n := time.Duration(*rounds)
			fmt.Printf("%-8s %-10v %10d %10s %10s %10s %12d\n", mode, compress, vertices,
				(parse / n).Round(time.Microsecond),
				(save / n).Round(time.Microsecond),
				(load / n).Round(time.Microsecond),
				info.Size())
		}
	}
}
