package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/carvtrainer-go/pkg/createdat"
	"github.com/quidome/carvtrainer-go/pkg/logger"
	"github.com/quidome/carvtrainer-go/pkg/scan"
)

var errNotImage = errors.New("not an image file")

type metadataRecord struct {
	Path          string           `json:"path"`
	FileSizeBytes int64            `json:"file_size_bytes"`
	ModTime       time.Time        `json:"mod_time"`
	Metadata      createdat.Result `json:"metadata"`
	Candidates    *metadataSources `json:"candidates,omitempty"`
}

type metadataSources struct {
	EXIF     *string `json:"exif"`
	Filename *string `json:"filename"`
}

func isoOrNil(t time.Time, ok bool) *string {
	if !ok {
		return nil
	}
	s := t.Format(createdat.ISOLayout)
	return &s
}

func newMetadataCmd(opts *options) *cobra.Command {
	var (
		maxDepth int
		asJSON   bool
		detailed bool
	)

	metadataCmd := &cobra.Command{
		Use:   "metadata [path...]",
		Short: "Resolve screenshot timestamps",
		Long:  "Resolve the capture time of image files from EXIF or their filename. Directories are scanned for images.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanOpts := scan.DefaultOptions()
			scanOpts.MaxDepth = maxDepth

			files, err := collectImages(args, scanOpts)
			if err != nil {
				return err
			}

			log := zap.NewNop().Sugar()
			if opts.verbose {
				if log, err = logger.NewSugared("debug"); err != nil {
					return err
				}
				defer log.Sync()
			}

			records := make([]metadataRecord, len(files))
			g, _ := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.NumCPU())
			for i, file := range files {
				g.Go(func() error {
					path := file.Path
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}

					// Only the base name carries a capture time; directory names must not match.
					name := filepath.Base(path)
					records[i] = metadataRecord{Path: path, FileSizeBytes: file.FileSizeBytes, ModTime: file.ModTime}
					if detailed {
						d := createdat.DetermineDetailed(name, data)
						records[i].Metadata = d.Best
						records[i].Candidates = &metadataSources{
							EXIF:     isoOrNil(d.EXIF, d.EXIFFound),
							Filename: isoOrNil(d.Filename, d.FilenameFound),
						}
					} else {
						records[i].Metadata = createdat.Resolve(name, data)
					}

					log.Debugw("Resolved timestamp",
						"path", path,
						"datetime", records[i].Metadata.DateTime(),
						"source", string(records[i].Metadata.Source))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			for _, r := range records {
				cmd.Printf("%s\t%s\t%s\n", r.Path, orDash(r.Metadata.DateTime()), orDash(string(r.Metadata.Source)))
				if r.Candidates != nil {
					cmd.Printf("  exif\t%s\n", orDash(deref(r.Candidates.EXIF)))
					cmd.Printf("  filename\t%s\n", orDash(deref(r.Candidates.Filename)))
				}
			}
			return nil
		},
	}

	metadataCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum recursion depth for directories (0 = no recursion)")
	metadataCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	metadataCmd.Flags().BoolVar(&detailed, "detailed", false, "include every candidate timestamp")

	return metadataCmd
}

// collectImages expands directories into the images they contain. File arguments must
// carry an image extension. Scanned paths are joined onto the directory argument.
func collectImages(args []string, opts scan.Options) ([]scan.Record, error) {
	var files []scan.Record
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !opts.IsImage(arg) {
				return nil, fmt.Errorf("%s: %w", arg, errNotImage)
			}
			files = append(files, scan.Record{Path: arg, FileSizeBytes: info.Size(), ModTime: info.ModTime()})
			continue
		}

		records, err := scan.ScanRecords(os.DirFS(arg), ".", opts)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		for _, r := range records {
			r.Path = filepath.Join(arg, filepath.FromSlash(r.Path))
			files = append(files, r)
		}
	}
	return files, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
