package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/cogchat/pkg/bridge"
	"github.com/go-go-golems/cogchat/pkg/chat"
	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/events"
	"github.com/go-go-golems/cogchat/pkg/graph"
	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/providers/factory"
	"github.com/go-go-golems/cogchat/pkg/router"
	"github.com/go-go-golems/cogchat/pkg/session"
)

// selectAdapter routes the conversation to a provider and builds its adapter.
// The --provider flag pins the choice; otherwise the router scores all
// registered providers that fit the conversation.
func selectAdapter(messages []conversation.Message, task router.TaskType) (string, providers.Adapter, error) {
	r, err := buildRouter()
	if err != nil {
		return "", nil, err
	}
	name, err := r.Select(messages, task, viper.GetString("provider"))
	if err != nil {
		return "", nil, err
	}
	adapter, err := factory.NewStandardFactory().CreateAdapter(configSource(name, viper.GetString("model")))
	if err != nil {
		return "", nil, err
	}
	return name, adapter, nil
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "One-shot completion, streamed to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages := []conversation.Message{
				conversation.NewMessage(conversation.RoleUser, strings.Join(args, " ")),
			}

			name, adapter, err := selectAdapter(messages, router.TaskChat)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "[%s]\n", name)

			err = adapter.CompleteStream(cmd.Context(), messages, func(chunk string) error {
				fmt.Print(chunk)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with session persistence",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := graph.NewMemoryStore()
			manager := session.NewManager(store, factory.NewStandardFactory(),
				session.WithConfigSource(configSource))

			provider := viper.GetString("provider")
			model := viper.GetString("model")

			var sessionID string
			var err error
			if sessionName != "" {
				sessionID, err = manager.Resume(sessionName, provider, model)
			} else {
				sessionID, err = manager.Create(provider, model)
			}
			if err != nil {
				return err
			}

			completion, ok := manager.Completion(sessionID)
			if !ok {
				return fmt.Errorf("session %s has no live conversation", sessionID)
			}

			// Stream lifecycle events through an in-process pub/sub so the
			// event flow can be observed at debug level.
			pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
			defer func() { _ = pubSub.Close() }()
			watchEvents(cmd, pubSub, completion)

			meta, _ := manager.Metadata(sessionID)
			fmt.Fprintf(os.Stderr, "session %s (%s/%s), %d messages. /quit to exit.\n",
				sessionID, meta.Provider, meta.Model, meta.MessageCount)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return manager.Mediate(sessionID)
				case "/clear":
					completion.Clear()
					continue
				}

				completion.AddMessage(conversation.RoleUser, line)
				manager.Touch(sessionID)

				err := completion.CompleteStream(cmd.Context(), func(chunk string) error {
					fmt.Print(chunk)
					return nil
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println()

				if err := manager.Mediate(sessionID); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionName, "session", "", "named session to resume or create")
	return cmd
}

// watchEvents subscribes the completion's lifecycle events and logs them.
func watchEvents(cmd *cobra.Command, pubSub *gochannel.GoChannel, completion *chat.Completion) {
	const topic = "chat-events"

	pm := events.NewPublisherManager()
	pm.AddSubscription(topic, pubSub)
	completion.SetPublisher(pm)

	messages, err := pubSub.Subscribe(cmd.Context(), topic)
	if err != nil {
		return
	}
	go func() {
		for msg := range messages {
			if e, err := events.ParseEvent(msg); err == nil {
				logEvent(e)
			}
			msg.Ack()
		}
	}()
}

func logEvent(e *events.Event) {
	switch e.Type {
	case events.EventTypeStart, events.EventTypeFinal, events.EventTypeError:
		fmt.Fprintf(os.Stderr, "\n[event %s conversation=%s]\n", e.Type, e.ConversationID)
	}
}

func newEmbedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "embed [text...]",
		Short: "Compute an embedding and print its dimensions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			messages := []conversation.Message{
				conversation.NewMessage(conversation.RoleUser, text),
			}

			name, adapter, err := selectAdapter(messages, router.TaskEmbedding)
			if err != nil {
				return err
			}

			vector, err := adapter.Embeddings(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d dimensions\n", name, len(vector))
			return nil
		},
	}
}

func newBridgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge [text...]",
		Short: "Ground text concepts in the graph store and query their relationships",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			messages := []conversation.Message{
				conversation.NewMessage(conversation.RoleUser, text),
			}

			_, adapter, err := selectAdapter(messages, router.TaskChat)
			if err != nil {
				return err
			}

			store := graph.NewMemoryStore()
			b := bridge.New(store, adapter)

			reply, err := b.Bridge(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			fmt.Fprintf(os.Stderr, "graph: %d nodes, %d links\n", store.NodeCount(), store.LinkCount())
			return nil
		},
	}
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRouter()
			if err != nil {
				return err
			}
			for _, name := range r.List("") {
				caps, _ := r.Capabilities(name)
				var features []string
				if caps.SupportsChat {
					features = append(features, "chat")
				}
				if caps.SupportsStreaming {
					features = append(features, "streaming")
				}
				if caps.SupportsEmbeddings {
					features = append(features, "embeddings")
				}
				if caps.SupportsFunctions {
					features = append(features, "functions")
				}
				cost := "free"
				if caps.CostPerToken > 0 {
					cost = fmt.Sprintf("$%g/token", caps.CostPerToken)
				}
				fmt.Printf("%-8s context=%-8d %-10s %s\n", name, caps.MaxContextLength, cost, strings.Join(features, ","))
			}
			return nil
		},
	}
}

func newAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Audit core modules and record the result in the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := graph.NewMemoryStore()
			manager := session.NewManager(store, factory.NewStandardFactory(),
				session.WithConfigSource(configSource))

			for _, module := range manager.AuditModules() {
				fmt.Printf("%s: ok\n", module)
			}
			fmt.Fprintf(os.Stderr, "graph: %d nodes, %d links\n", store.NodeCount(), store.LinkCount())
			return nil
		},
	}
}
