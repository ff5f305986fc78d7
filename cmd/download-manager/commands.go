package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/session"
)

var errNoArgs = errors.New("nothing to do")

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "download URLs, waiting for them to finish",
	ArgsUsage: "URL...",
	Action: func(c *cli.Context) error {
		return addAndWatch(c, c.Args().Slice(), &session.AddTaskOptions{})
	},
}

var addCommand = &cli.Command{
	Name:      "add",
	Usage:     "add URLs to the download list",
	ArgsUsage: "URL...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "save as `NAME` instead of the name from the URL",
		},
		&cli.BoolFlag{
			Name:  "no-resume",
			Usage: "restart from the beginning instead of resuming after a pause",
		},
		&cli.BoolFlag{
			Name:  "background",
			Usage: "allow downloading while the application is in the background",
		},
		&cli.BoolFlag{
			Name:  "start",
			Usage: "start downloading and wait for it to finish",
		},
	},
	Action: func(c *cli.Context) error {
		urls := c.Args().Slice()
		if c.IsSet("name") && len(urls) > 1 {
			return errors.New("--name only applies to a single URL")
		}
		resumable := !c.Bool("no-resume")
		opt := &session.AddTaskOptions{
			Name:            c.String("name"),
			Resumable:       &resumable,
			AllowBackground: c.Bool("background"),
		}
		if c.Bool("start") {
			return addAndWatch(c, urls, opt)
		}
		return withSession(c, func(s *session.Session) error {
			for _, url := range urls {
				t, err := s.AddTask(url, opt)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%v\t%v\n", t.ID(), t.Snapshot().Source)
			}
			return nil
		})
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "show the download list",
	Action: func(c *cli.Context) error {
		return withSession(c, func(s *session.Session) error {
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tSTATE\tPROGRESS\tNAME\tSOURCE\tERROR")
			for i, t := range s.List() {
				rec := t.Snapshot()
				fmt.Fprintf(w, "%d\t%v\t%v\t%.1f%%\t%v\t%v\t%v\n",
					i, rec.ID, rec.State, t.DisplayProgress()*100, rec.Name, rec.Source, rec.Error)
			}
			return w.Flush()
		})
	},
}

var startCommand = &cli.Command{
	Name:      "start",
	Usage:     "start or resume downloads, waiting for them to finish",
	ArgsUsage: "ID...",
	Action: func(c *cli.Context) error {
		return withSession(c, func(s *session.Session) error {
			tasks, err := resolveTasks(s, c.Args().Slice())
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return errNoArgs
			}
			return watch(c.Context, s, tasks, func() error {
				return eachTask(tasks, func(t *download.Task) error { return s.Start(t.ID()) })
			})
		})
	},
}

var cancelCommand = &cli.Command{
	Name:      "cancel",
	Usage:     "cancel downloads, discarding partial data",
	ArgsUsage: "ID...",
	Action: func(c *cli.Context) error {
		return withSession(c, func(s *session.Session) error {
			tasks, err := resolveTasks(s, c.Args().Slice())
			if err != nil {
				return err
			}
			return eachTask(tasks, func(t *download.Task) error { return s.Cancel(t.ID()) })
		})
	},
}

var removeCommand = &cli.Command{
	Name:      "remove",
	Usage:     "remove downloads from the list",
	ArgsUsage: "ID...",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "delete-file",
			Usage: "also delete the downloaded file",
		},
	},
	Action: func(c *cli.Context) error {
		return withSession(c, func(s *session.Session) error {
			tasks, err := resolveTasks(s, c.Args().Slice())
			if err != nil {
				return err
			}
			deleteFile := c.Bool("delete-file")
			return eachTask(tasks, func(t *download.Task) error { return s.Remove(t.ID(), deleteFile) })
		})
	},
}

var moveCommand = &cli.Command{
	Name:      "move",
	Usage:     "move a download to a new position in the list",
	ArgsUsage: "FROM TO",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("expected FROM and TO, got %d arguments", c.NArg())
		}
		from, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return fmt.Errorf("FROM: %w", err)
		}
		to, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return fmt.Errorf("TO: %w", err)
		}
		return withSession(c, func(s *session.Session) error {
			return s.Move(from, to)
		})
	},
}

func addAndWatch(c *cli.Context, urls []string, opt *session.AddTaskOptions) error {
	if len(urls) == 0 {
		return errNoArgs
	}
	return withSession(c, func(s *session.Session) error {
		tasks := make([]*download.Task, 0, len(urls))
		for _, url := range urls {
			t, err := s.AddTask(url, opt)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return watch(c.Context, s, tasks, func() error {
			return eachTask(tasks, func(t *download.Task) error { return s.Start(t.ID()) })
		})
	})
}

// eachTask applies f to every task, collecting the errors.
func eachTask(tasks []*download.Task, f func(t *download.Task) error) error {
	var result error
	for _, t := range tasks {
		if err := f(t); err != nil {
			result = multierror.Append(result, fmt.Errorf("%v: %w", t, err))
		}
	}
	return result
}
