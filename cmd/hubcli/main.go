package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"chathub/client"
	"chathub/pkg/protocol"
)

func main() {
	server := flag.String("server", "ws://localhost:8080", "Server base URL")
	tenant := flag.String("tenant", "", "Tenant token")
	user := flag.String("user", "", "User id to register")
	group := flag.String("group", "", "Group to join after registering")
	flag.Parse()

	if *tenant == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "both -tenant and -user are required")
		os.Exit(1)
	}

	c := client.New(&client.Config{
		ServerURL: *server,
		Tenant:    *tenant,
		UserID:    *user,
	}, printEvent)

	roster, err := c.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if roster != "" {
		fmt.Printf("reachable users: %s\n", roster)
	}

	if *group != "" {
		if err := c.Join(*group); err != nil {
			fmt.Fprintf(os.Stderr, "join %s failed: %v\n", *group, err)
			os.Exit(1)
		}
		if err := c.Online(); err != nil {
			fmt.Fprintf(os.Stderr, "presence announce failed: %v\n", err)
		}
		fmt.Printf("joined group %s\n", *group)
	}

	fmt.Println("commands: /pm <user> <message> | /all <message> | <message> (to group)")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "/pm "):
			parts := strings.SplitN(line[4:], " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /pm <user> <message>")
				continue
			}
			if err := c.SendPrivate(parts[0], parts[1], uuid.NewString()); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/all "):
			if err := c.SendAll(line[5:]); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		default:
			if *group == "" {
				fmt.Println("no group joined; use /pm or /all")
				continue
			}
			if err := c.SendGroup(*group, line, uuid.NewString()); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func printEvent(ev protocol.Event) {
	switch ev.Event {
	case protocol.EventReceiveAll:
		if len(ev.Args) > 0 {
			fmt.Printf("[broadcast] %v\n", ev.Args[0])
		}
	case protocol.EventReceivePrivateMessage:
		if len(ev.Args) >= 2 {
			fmt.Printf("[pm] %v: %v\n", ev.Args[0], ev.Args[1])
		}
	case protocol.EventReceiveGroupMessage:
		if len(ev.Args) >= 3 {
			fmt.Printf("[%v] %v: %v\n", ev.Args[1], ev.Args[0], ev.Args[2])
		}
	case protocol.EventUserConnected:
		if len(ev.Args) > 0 {
			fmt.Printf("* %v is online\n", ev.Args[0])
		}
	case protocol.EventUserDisconnected:
		if len(ev.Args) > 0 {
			fmt.Printf("* %v went offline\n", ev.Args[0])
		}
	case protocol.EventDeleteMessage:
		if len(ev.Args) > 0 {
			fmt.Printf("* message %v was deleted\n", ev.Args[0])
		}
	default:
		fmt.Printf("[event] %s %v\n", ev.Event, ev.Args)
	}
}
