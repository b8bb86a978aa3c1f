package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/formats"
	"github.com/LdDl/annotrack-go/interpolation"
	"github.com/LdDl/annotrack-go/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func statsCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [annotation file]",
		Short: "Print summary of annotation file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(app, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			repo := s.Repository()
			stats := repo.Statistics()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "video:       %s\n", s.VideoName())
			fmt.Fprintf(out, "annotations: %d (manual %d, loaded %d)\n", stats.Total, stats.Manual, stats.Loaded)
			fmt.Fprintf(out, "frames:      %d\n", len(repo.Frames()))
			fmt.Fprintf(out, "tracks:      %d\n", len(repo.Tracks()))
			fmt.Fprintf(out, "labels:      %s\n", strings.Join(repo.Labels(), ", "))
			return nil
		},
	}
}

func exportCommand(app *appContext) *cobra.Command {
	var format, output, video string
	var width, height int
	var threshold float64
	cmd := &cobra.Command{
		Use:   "export [annotation file]",
		Short: "Convert annotation file to MASA or COCO JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threshold") {
				app.settings.Export.ScoreThreshold = threshold
				if err := app.settings.Validate(); err != nil {
					return err
				}
			}
			s, err := openSession(app, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			if video == "" {
				video = s.VideoName()
			}
			return writeOutput(output, func(file *os.File) error {
				switch format {
				case "masa":
					return s.ExportMASA(file, video)
				case "coco":
					return s.ExportCOCO(file, formats.COCOOptions{
						VideoPath: video,
						Width:     width,
						Height:    height,
						Progress: func(current, total int) {
							app.logger.Debug().Int("current", current).Int("total", total).Msg("coco export progress")
						},
					})
				default:
					return errors.Errorf("Unknown export format '%s'", format)
				}
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "masa", "Output format: masa or coco")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&video, "video", "", "Video path written into document")
	cmd.Flags().IntVar(&width, "width", 0, "Video width for COCO images")
	cmd.Flags().IntVar(&height, "height", 0, "Video height for COCO images")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.2, "Minimum box confidence to export")
	return cmd
}

func interpolateCommand(app *appContext) *cobra.Command {
	var trackID int
	var method, output string
	var replace bool
	cmd := &cobra.Command{
		Use:   "interpolate [annotation file]",
		Short: "Build new track through annotations of existing track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := session.ParseMethod(method)
			if err != nil {
				return err
			}
			s, err := openSession(app, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			track := s.Repository().ByTrack(annotation.TrackID(trackID))
			if len(track) == 0 {
				return errors.Errorf("Track %d not found", trackID)
			}
			points := make([]interpolation.ControlPoint, 0, len(track))
			seen := make(map[int]bool, len(track))
			for _, ann := range track {
				if seen[ann.FrameID] {
					continue
				}
				seen[ann.FrameID] = true
				points = append(points, interpolation.NewControlPoint(ann.FrameID, ann.BBox))
			}
			created, result, err := s.Interpolate(points, parsed, track[0].Label)
			if err != nil {
				return err
			}
			if replace {
				if _, err := s.DeleteTrack(annotation.TrackID(trackID)); err != nil {
					return err
				}
			}
			app.logger.Info().Int("source_track", trackID).Int("track_id", int(created)).Int("annotations", len(result)).Msg("interpolated")
			return writeOutput(output, func(file *os.File) error {
				return s.ExportMASA(file, s.VideoName())
			})
		},
	}
	cmd.Flags().IntVar(&trackID, "track", 0, "Track providing control points")
	cmd.Flags().StringVar(&method, "method", "linear", "Interpolation method: linear or kalman")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output MASA file (stdout when empty)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete source track after interpolation")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}

func fillGapsCommand(app *appContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "fill-gaps [annotation file]",
		Short: "Linearly fill missing frames of every track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(app, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			total := 0
			for _, trackID := range s.Repository().Tracks() {
				added, err := s.FillGaps(trackID)
				if err != nil {
					return err
				}
				total += added
			}
			app.logger.Info().Int("annotations", total).Msg("gaps filled")
			return writeOutput(output, func(file *os.File) error {
				return s.ExportMASA(file, s.VideoName())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output MASA file (stdout when empty)")
	return cmd
}

func writeOutput(path string, write func(file *os.File) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", path)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
