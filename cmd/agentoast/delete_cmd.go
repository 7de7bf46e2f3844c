package main

import (
	"flag"
	"fmt"
	"os"
)

func handleDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "Delete one notification by id")
	pane := fs.String("pane", "", "Delete the notification for one tmux pane")
	repo := fs.String("repo", "", "Delete every notification in one repo/group")
	all := fs.Bool("all", false, "Delete every notification")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast delete [--id N | --pane %N | --repo KEY | --all]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	selectors := 0
	if *id != 0 {
		selectors++
	}
	if *pane != "" {
		selectors++
	}
	if *repo != "" {
		selectors++
	}
	if *all {
		selectors++
	}
	if selectors != 1 {
		fs.Usage()
		os.Exit(1)
	}

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	switch {
	case *id != 0:
		err = st.Delete(*id)
	case *pane != "":
		err = st.DeleteByPane(*pane)
	case *repo != "":
		err = st.DeleteByGroup(*repo)
	case *all:
		err = st.DeleteAll()
	}
	if err != nil {
		fail("deleting: %v", err)
	}
	fmt.Println("Deleted.")
}
