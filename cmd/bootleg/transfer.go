package main

import (
	"github.com/spf13/cobra"

	"github.com/spinlock99/bootleg/internal/role"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [role] [local] [remote]",
	Short: "Upload a file or directory to every host of a role",
	Long:  `Upload a local file or directory to every host of a role. Directories copy recursively. A remote path of "." or one ending in "/" is a directory target and the file keeps its name; relative paths resolve against the role workspace.`,
	Args:  cobra.ExactArgs(3),
	RunE:  runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download [role] [remote] [local]",
	Short: "Download a file or directory from every host of a role",
	Long:  `Download a remote file or directory from every host of a role into a local directory. With several hosts, the last host processed wins on name collisions.`,
	Args:  cobra.ExactArgs(3),
	RunE:  runDownload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, err := role.ParseSpec(args[0])
	if err != nil {
		return err
	}

	if hist := eng.History(); hist != nil {
		run, herr := hist.BeginRun("upload")
		if herr == nil {
			defer func() { hist.FinishRun(run.ID, err) }()
		}
	}

	err = eng.Upload(cmd.Context(), spec, args[1], args[2])
	return err
}

func runDownload(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, err := role.ParseSpec(args[0])
	if err != nil {
		return err
	}

	if hist := eng.History(); hist != nil {
		run, herr := hist.BeginRun("download")
		if herr == nil {
			defer func() { hist.FinishRun(run.ID, err) }()
		}
	}

	err = eng.Download(cmd.Context(), spec, args[1], args[2])
	return err
}
