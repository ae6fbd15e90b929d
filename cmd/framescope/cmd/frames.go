package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/framescope/datarecording"
)

var (
	framesLimit  int
	framesOffset int
	framesShow   int
	framesJSON   bool
)

var framesCmd = &cobra.Command{
	Use:   "frames <recording.sqlite3>",
	Short: "List the frames of a recording.",
	Long: "`frames <db>` lists the recorded frames. " +
		"`frames <db> --show <seq>` prints the profiles of one frame.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewFrameReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		out := cmd.OutOrStdout()

		if framesShow >= 0 {
			return showFrame(ctx, out, reader, framesShow, framesJSON)
		}

		return listFrames(ctx, out, reader, framesOffset, framesLimit)
	},
}

func init() {
	rootCmd.AddCommand(framesCmd)

	f := framesCmd.Flags()
	f.IntVar(&framesLimit, "limit", 0, "Maximum number of frames, 0 for all")
	f.IntVar(&framesOffset, "offset", 0, "Number of frames to skip")
	f.IntVar(&framesShow, "show", -1, "Sequence number of a frame to print")
	f.BoolVar(&framesJSON, "json", false, "Print the shown frame as JSON")
}

func listFrames(
	ctx context.Context,
	out io.Writer,
	reader *datarecording.FrameReader,
	offset, limit int,
) error {
	frames, total, err := reader.Frames(ctx, offset, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSOURCE\tPROFILES\tTOTAL(ms)")

	for _, f := range frames {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.3f\n",
			f.Seq, f.Source, f.NumProfiles, f.TotalMs)
	}

	w.Flush()
	fmt.Fprintf(out, "%d of %d frames\n", len(frames), total)

	return nil
}

func showFrame(
	ctx context.Context,
	out io.Writer,
	reader *datarecording.FrameReader,
	seq int,
	asJSON bool,
) error {
	if asJSON {
		f, err := reader.Frame(ctx, seq)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(f)
	}

	entries, err := reader.Entries(ctx, seq)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POSITION\tID\tNAME\tCOMPOSITE(ms)\tLIFECYCLE(ms)")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\t%.3f\n",
			e.Position, e.Identity, e.Name, e.CompositeMs, e.LifecycleMs)
	}

	return w.Flush()
}
