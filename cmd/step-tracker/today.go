package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/step-tracker/pkg/database/sqlite"
	kv_sqlite "github.com/code-payments/step-tracker/pkg/kv/sqlite"
	"github.com/code-payments/step-tracker/pkg/steps/counter"
)

const dayLayout = "2006-01-02"

func todayCmd() *cobra.Command {
	var (
		sqlitePath string
		day        string
	)

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Print the stored step count for today",
		Long: `Prints the step count stored in a sqlite database written by
"step-tracker serve --kv-backend sqlite". Use --day to read another local day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.Open(sqlitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			kvStore, err := kv_sqlite.New(db)
			if err != nil {
				return err
			}
			store := counter.NewStore(kvStore, counter.WithEnvConfigs())

			ctx := context.Background()

			at := store.Now()
			if len(day) > 0 {
				at, err = time.ParseInLocation(dayLayout, day, store.Location())
				if err != nil {
					return errors.Wrapf(err, "invalid day %q", day)
				}
			}

			var count int64
			record, err := store.Get(ctx, at)
			switch err {
			case nil:
				count = record.Count
			case counter.ErrNotFound:
			default:
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", counter.StartOfDay(at, store.Location()).Format(dayLayout), count)
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "step_tracker.db", "sqlite database file")
	cmd.Flags().StringVar(&day, "day", "", "local day to read, as YYYY-MM-DD")

	return cmd
}
