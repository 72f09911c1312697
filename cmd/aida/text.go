package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/aida/core/session"
)

type textAssistant interface {
	session.Handler
	session.Recorder
}

// chat answers typed lines until the input ends, "exit" is typed or ctx is
// done.
func chat(ctx context.Context, aida textAssistant, in io.Reader, out io.Writer) error {
	sessionID := uuid.NewString()
	fmt.Fprintln(out, "Type your message, or 'exit' to quit.")

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "You: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "bye":
			fmt.Fprintln(out, "Aida: Goodbye!")
			return nil
		}

		reply, err := aida.Handle(ctx, line, sessionID)
		if err != nil {
			fmt.Fprintf(out, "Aida: Sorry, something went wrong (%v).\n", err)
			continue
		}
		fmt.Fprintf(out, "Aida: %s\n", reply)

		exchange := session.Exchange{SessionID: sessionID, Utterance: line, Reply: reply, At: time.Now()}
		if err := aida.Record(ctx, exchange); err != nil {
			fmt.Fprintf(out, "(failed to remember this: %v)\n", err)
		}
	}
}
