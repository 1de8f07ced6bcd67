package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"casebook-server/internal/model"
	"casebook-server/internal/service"
)

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "医疗问答",
	}
	cmd.AddCommand(
		newChatSendCmd(a),
		newChatSessionsCmd(a),
		newChatHistoryCmd(a),
		newChatDeleteCmd(a),
	)
	return cmd
}

func newChatSendCmd(a *app) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "发送问题，指定 --session 时继续已有会话",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &service.SendMessageRequest{Message: strings.Join(args, " ")}
			if sessionID > 0 {
				req.ChatID = &sessionID
			}

			reply, err := a.client().SendMessage(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.AIResponse)
			fmt.Fprintln(out)
			if reply.Fallback {
				fmt.Fprintln(out, "⚠ AI服务暂时不可用，以上为默认回复")
			}
			fmt.Fprintf(out, "会话 ID: %d (继续提问: casectl chat send --session %d ...)\n", reply.ChatID, reply.ChatID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&sessionID, "session", 0, "会话ID")
	return cmd
}

func newChatSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "列出最近的会话",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := a.client().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "暂无会话")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%d  %s  (%s)\n", s.ID, s.Title, s.TimeDisplay)
			}
			return nil
		},
	}
}

func newChatHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "查看会话消息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			messages, err := a.client().ListMessages(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range messages {
				who := "我"
				if m.Type == model.MessageTypeAssistant {
					who = "AI"
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", m.TimeDisplay, who, m.Content)
			}
			return nil
		},
	}
}

func newChatDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "删除会话",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			if err := a.client().DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ 会话已删除")
			return nil
		},
	}
}

func sessionArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("无效的会话ID: %s", arg)
	}
	return id, nil
}
