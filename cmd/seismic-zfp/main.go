// Command seismic-zfp converts SEG-Y volumes to the compressed SZ format
// and reads slices back out of SZ files.
package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/huanghanqing/seismic-zfp/pkg/config"
	"github.com/huanghanqing/seismic-zfp/pkg/convert"
	"github.com/huanghanqing/seismic-zfp/pkg/quality"
	"github.com/huanghanqing/seismic-zfp/pkg/segy"
	"github.com/huanghanqing/seismic-zfp/pkg/szreader"
)

func main() {
	app := &cli.App{
		Name:  "seismic-zfp",
		Usage: "compressed block-structured seismic volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file with conversion defaults",
				Value: "seismic-zfp.yml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (overrides config)",
			},
		},
		Commands: []*cli.Command{
			convertCommand(),
			infoCommand(),
			sliceCommand(),
			verifyCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig reads the config file and applies the logging level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if c.String("log-level") != "" {
		level = c.String("log-level")
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	logrus.SetLevel(lvl)
	return cfg, nil
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "convert a SEG-Y volume to SZ",
		ArgsUsage: "IN.segy OUT.sz",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "bits", Usage: "bits per voxel (1, 2, 4, 8, 16 or 32)"},
			&cli.StringFlag{Name: "method", Usage: "conversion strategy, \"stream\" or \"inmemory\""},
			&cli.IntFlag{Name: "queue-depth", Usage: "streaming queue depth in inline-groups"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("need exactly IN.segy and OUT.sz")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			bits := cfg.Conversion.BitsPerVoxel
			if c.IsSet("bits") {
				bits = c.Int("bits")
			}
			methodName := cfg.Conversion.Method
			if c.IsSet("method") {
				methodName = c.String("method")
			}
			method, err := convert.ParseMethod(methodName)
			if err != nil {
				return err
			}
			depth := cfg.Conversion.QueueDepth
			if c.IsSet("queue-depth") {
				depth = c.Int("queue-depth")
			}

			src, err := segy.Open(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer src.Close()
			return convert.Convert(src, c.Args().Get(1), convert.Options{
				BitsPerVoxel: bits,
				Method:       method,
				QueueDepth:   depth,
			})
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print the geometry of an SZ file",
		ArgsUsage: "FILE.sz",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("need exactly one SZ file")
			}
			if _, err := loadConfig(c); err != nil {
				return err
			}
			r, err := szreader.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer r.Close()
			g := r.Geometry()
			fmt.Printf("inlines:    %d (first %g, step %g)\n", g.Inlines.Count, g.Inlines.First, g.Inlines.Step)
			fmt.Printf("crosslines: %d (first %g, step %g)\n", g.Crosslines.Count, g.Crosslines.First, g.Crosslines.Step)
			fmt.Printf("samples:    %d (first %g, step %g)\n", g.Samples.Count, g.Samples.First, g.Samples.Step)
			fmt.Printf("rate:       %d bits per voxel\n", r.BitsPerVoxel())
			return nil
		},
	}
}

func sliceCommand() *cli.Command {
	return &cli.Command{
		Name:      "slice",
		Usage:     "extract a 2D slice from an SZ file",
		ArgsUsage: "FILE.sz",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "line-type",
				Usage: "\"il\" (inline), \"xl\" (crossline) or \"cd\" (correlated diagonal)",
				Value: "il",
			},
			&cli.IntFlag{Name: "n", Usage: "line index (ordinal; may be negative for cd)"},
			&cli.StringFlag{Name: "out", Usage: "write slice as raw little-endian float32 (else print stats)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("need exactly one SZ file")
			}
			if _, err := loadConfig(c); err != nil {
				return err
			}
			r, err := szreader.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer r.Close()

			var slice [][]float32
			switch c.String("line-type") {
			case "il":
				slice, err = r.ReadInline(c.Int("n"))
			case "xl":
				slice, err = r.ReadCrossline(c.Int("n"))
			case "cd":
				slice, err = r.ReadCorrelatedDiagonal(c.Int("n"))
			default:
				err = errors.Errorf("unknown line type %q", c.String("line-type"))
			}
			if err != nil {
				return err
			}

			if out := c.String("out"); out != "" {
				return writeRawSlice(out, slice)
			}
			printSliceStats(slice)
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "measure reconstruction error of an SZ file against its SEG-Y source",
		ArgsUsage: "FILE.sz",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "segy", Usage: "the SEG-Y file the SZ was converted from", Required: true},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("need exactly one SZ file")
			}
			if _, err := loadConfig(c); err != nil {
				return err
			}
			src, err := segy.Open(c.String("segy"))
			if err != nil {
				return err
			}
			defer src.Close()
			r, err := szreader.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer r.Close()

			var orig, recon []float32
			for i := 0; i < len(src.Ilines()); i++ {
				want, err := src.ReadInline(i)
				if err != nil {
					return err
				}
				got, err := r.ReadInline(i)
				if err != nil {
					return err
				}
				for x := range want {
					orig = append(orig, want[x]...)
					recon = append(recon, got[x]...)
				}
			}
			m, err := quality.Compare(orig, recon)
			if err != nil {
				return err
			}
			fmt.Printf("rmse:      %g\n", m.RMSE)
			fmt.Printf("max error: %g\n", m.MaxError)
			fmt.Printf("snr:       %.2f dB\n", m.SNR)
			return nil
		},
	}
}

func writeRawSlice(path string, slice [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	buf := make([]byte, 4)
	for _, trace := range slice {
		for _, v := range trace {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := f.Write(buf); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
		}
	}
	return f.Close()
}

func printSliceStats(slice [][]float32) {
	var n int
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, trace := range slice {
		for _, v := range trace {
			n++
			if float64(v) < minV {
				minV = float64(v)
			}
			if float64(v) > maxV {
				maxV = float64(v)
			}
		}
	}
	fmt.Printf("traces: %d, samples per trace: %d\n", len(slice), n/max(len(slice), 1))
	fmt.Printf("min: %g, max: %g\n", minV, maxV)
}
