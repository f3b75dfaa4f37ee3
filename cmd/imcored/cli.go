package main

import (
	"context"
	"fmt"
	"os"

	"imcore/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("imcored %s\n", Version)
		return true
	case "accounts":
		return cliAccounts(args[1:], dbPath)
	case "buddies":
		return cliBuddies(args[1:], dbPath)
	case "privacy":
		return cliPrivacy(args[1:], dbPath)
	default:
		return false
	}
}

func openStoreOrExit(dbPath string) *store.Store {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliAccounts(args []string, dbPath string) bool {
	st := openStoreOrExit(dbPath)
	defer st.Close()
	ctx := context.Background()

	if len(args) == 0 || args[0] == "list" {
		rows, err := st.ListAccounts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(rows) == 0 {
			fmt.Println("No accounts found.")
			return true
		}
		for _, a := range rows {
			fmt.Printf("  %s:%s (remember=%v)\n", a.ProtocolID, a.Username, a.RememberPassword)
		}
		return true
	}

	if args[0] == "add" && len(args) >= 3 {
		protocolID, username := args[1], args[2]
		if err := st.UpsertAccount(ctx, store.AccountRow{ProtocolID: protocolID, Username: username}); err != nil {
			fmt.Fprintf(os.Stderr, "error adding account: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added account %s:%s\n", protocolID, username)
		return true
	}

	if args[0] == "remove" && len(args) >= 3 {
		protocolID, username := args[1], args[2]
		if err := st.DeleteAccount(ctx, protocolID, username); err != nil {
			fmt.Fprintf(os.Stderr, "error removing account: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed account %s:%s\n", protocolID, username)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: imcored accounts [list|add <protocol> <username>|remove <protocol> <username>]\n")
	os.Exit(1)
	return true
}

func cliBuddies(args []string, dbPath string) bool {
	st := openStoreOrExit(dbPath)
	defer st.Close()
	ctx := context.Background()

	if len(args) >= 2 && args[0] == "list" {
		// args[1]=protocol, args[2]=username would be clearer, but the
		// CLI here keeps "protocol:username" as one token to match the
		// account key's own String() format.
		protocolID, username, ok := splitAccountKey(args[1])
		if !ok {
			fmt.Fprintln(os.Stderr, "expected protocol:username")
			os.Exit(1)
		}
		buddies, err := st.ListBuddies(ctx, protocolID, username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(buddies) == 0 {
			fmt.Println("No buddies found.")
			return true
		}
		for _, b := range buddies {
			fmt.Printf("  %s (groups: %v)\n", b.BuddyName, b.Groups)
		}
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: imcored buddies list <protocol>:<username>\n")
	os.Exit(1)
	return true
}

func cliPrivacy(args []string, dbPath string) bool {
	st := openStoreOrExit(dbPath)
	defer st.Close()
	ctx := context.Background()

	if len(args) >= 3 && args[0] == "show" {
		protocolID, username, ok := splitAccountKey(args[1])
		if !ok {
			fmt.Fprintln(os.Stderr, "expected protocol:username")
			os.Exit(1)
		}
		who, err := st.GetPrivacyList(ctx, protocolID, username, args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %v\n", args[2], who)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: imcored privacy show <protocol>:<username> <permit|deny>\n")
	os.Exit(1)
	return true
}

func splitAccountKey(s string) (protocolID, username string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
