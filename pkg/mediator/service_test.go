package mediator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/mocks"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
	"coralrelay/pkg/upstream"
)

func newTestService(t *testing.T, client upstream.Client, opts ...Option) *Service {
	t.Helper()

	svc, err := NewService(client, slog.New(slog.DiscardHandler), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresClient(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatal("expected error without upstream client")
	}
}

func TestRegisterAgentValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().RegisterAgent(gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, client)

	for _, name := range []string{"", "   "} {
		_, err := svc.RegisterAgent(context.Background(), types.RegisterAgentRequest{AgentName: name})
		if got := relay.CategoryFromError(err); got != relay.CategoryInvalidInput {
			t.Fatalf("RegisterAgent(%q) category = %q, want %q", name, got, relay.CategoryInvalidInput)
		}
	}
}

func TestRegisterAgentNormalizesCapabilities(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().
		RegisterAgent(gomock.Any(), types.Agent{Name: "agent_x", Capabilities: []string{"search", "plan"}}).
		Return(nil).
		Times(1)

	svc := newTestService(t, client)

	response, err := svc.RegisterAgent(context.Background(), types.RegisterAgentRequest{
		AgentName:    "agent_x",
		Capabilities: []string{"search", " plan ", "search", ""},
	})
	require.NoError(t, err)
	require.Equal(t, relay.StatusSuccess, response.Status)
	require.Equal(t, "Successfully registered agent 'agent_x' with capabilities: [search, plan]", response.Message)

	stored, ok := svc.View().Agent("agent_x")
	require.True(t, ok)
	require.Equal(t, []string{"search", "plan"}, stored.Capabilities)
}

func TestRegisterAgentDefaultsCapabilitiesToEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().
		RegisterAgent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, agent types.Agent) error {
			if agent.Capabilities == nil || len(agent.Capabilities) != 0 {
				t.Errorf("capabilities = %#v, want empty set", agent.Capabilities)
			}
			return nil
		})

	svc := newTestService(t, client)
	_, err := svc.RegisterAgent(context.Background(), types.RegisterAgentRequest{AgentName: "solo"})
	require.NoError(t, err)
}

func TestRegisterAgentUpstreamFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode relay.Category
		wantMsg  string
	}{
		{
			name:     "categorized error kept",
			err:      relay.NewError(relay.CategoryUnreachable, "dial tcp: connection refused"),
			wantCode: relay.CategoryUnreachable,
			wantMsg:  "dial tcp: connection refused",
		},
		{
			name:     "plain error tagged",
			err:      errors.New("name conflict"),
			wantCode: relay.CategoryRegistrationFailed,
			wantMsg:  "name conflict",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().RegisterAgent(gomock.Any(), gomock.Any()).Return(tc.err).Times(1)

			svc := newTestService(t, client)
			_, err := svc.RegisterAgent(context.Background(), types.RegisterAgentRequest{AgentName: "agent_x"})
			require.Error(t, err)
			require.Equal(t, tc.wantCode, relay.CategoryFromError(err))
			require.Equal(t, tc.wantMsg, relay.MessageFromError(err))

			_, ok := svc.View().Agent("agent_x")
			require.False(t, ok, "failed registration must not enter the view")
		})
	}
}

func TestSendMessageValidationMakesNoUpstreamCall(t *testing.T) {
	tests := []struct {
		name string
		req  types.SendMessageRequest
	}{
		{name: "empty recipient", req: types.SendMessageRequest{Recipient: "", Content: "x"}},
		{name: "empty content", req: types.SendMessageRequest{Recipient: "agent_x", Content: ""}},
		{name: "blank content", req: types.SendMessageRequest{Recipient: "agent_x", Content: " \t"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Times(0)

			svc := newTestService(t, client)
			_, err := svc.SendMessage(context.Background(), tc.req)
			require.Equal(t, relay.CategoryInvalidInput, relay.CategoryFromError(err))
		})
	}
}

func TestSendMessageForwardsOptionalThread(t *testing.T) {
	tests := []struct {
		name string
		req  types.SendMessageRequest
		want types.Message
	}{
		{
			name: "without thread",
			req:  types.SendMessageRequest{Recipient: "agent_x", Content: "hi"},
			want: types.Message{Recipient: "agent_x", Content: "hi"},
		},
		{
			name: "with thread",
			req:  types.SendMessageRequest{Recipient: "agent_x", Content: "hi", ThreadID: "t-1"},
			want: types.Message{Recipient: "agent_x", Content: "hi", ThreadID: "t-1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().SendMessage(gomock.Any(), tc.want).Return(nil).Times(1)

			svc := newTestService(t, client)
			response, err := svc.SendMessage(context.Background(), tc.req)
			require.NoError(t, err)
			require.Equal(t, "Successfully sent message to 'agent_x'", response.Message)
			require.Equal(t, tc.want.ThreadID, response.ThreadID)
		})
	}
}

func TestSendMessageDeliveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(errors.New("recipient unknown")).Times(1)

	svc := newTestService(t, client)
	_, err := svc.SendMessage(context.Background(), types.SendMessageRequest{Recipient: "ghost", Content: "hi"})
	require.Equal(t, relay.CategoryDeliveryFailed, relay.CategoryFromError(err))
	require.Equal(t, "recipient unknown", relay.MessageFromError(err))
}

func TestListAgentsNamesAreProjectionOfDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListAgents(gomock.Any()).Return([]types.Agent{
		{Name: "agent_x", Capabilities: []string{"search"}},
		{Name: "agent_y"},
	}, nil).Times(2)

	svc := newTestService(t, client)
	ctx := context.Background()

	details, err := svc.ListAgents(ctx, true)
	require.NoError(t, err)
	names, err := svc.ListAgents(ctx, false)
	require.NoError(t, err)

	require.False(t, details.Agents.NamesOnly)
	require.True(t, names.Agents.NamesOnly)
	require.Equal(t, types.AgentNames(details.Agents.Agents), names.Agents.Names())
	require.Equal(t, []string{}, details.Agents.Agents[1].Capabilities)
	require.Equal(t, 2, svc.View().Stats().Agents)
}

func TestListAgentsEmptyIsValid(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListAgents(gomock.Any()).Return(nil, nil)

	svc := newTestService(t, client)
	response, err := svc.ListAgents(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, response.Agents.Agents)
}

func TestListAgentsFailureIsUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListAgents(gomock.Any()).Return(nil, errors.New("connection reset"))

	svc := newTestService(t, client)
	_, err := svc.ListAgents(context.Background(), true)
	require.Equal(t, relay.CategoryUnreachable, relay.CategoryFromError(err))
}

func TestCreateThreadEmptyParticipantsMakesNoCalls(t *testing.T) {
	for _, participants := range [][]string{nil, {}, {"a", " "}} {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().CreateThread(gomock.Any(), gomock.Any()).Times(0)
		client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Times(0)

		svc := newTestService(t, client)
		_, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{Participants: participants, InitialMessage: "hi"})
		require.Equal(t, relay.CategoryInvalidInput, relay.CategoryFromError(err), "participants %v", participants)
	}
}

func TestCreateThreadFansOutToAllButInitiator(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	gomock.InOrder(
		client.EXPECT().
			CreateThread(gomock.Any(), types.Thread{ID: "thread-1", Participants: []string{"a", "b", "c"}}).
			Return("thread-1", nil),
		client.EXPECT().SendMessage(gomock.Any(), types.Message{Recipient: "b", Content: "hi", ThreadID: "thread-1"}).Return(nil),
		client.EXPECT().SendMessage(gomock.Any(), types.Message{Recipient: "c", Content: "hi", ThreadID: "thread-1"}).Return(nil),
	)
	client.EXPECT().SendMessage(gomock.Any(), gomock.Cond(func(msg types.Message) bool { return msg.Recipient == "a" })).Times(0)

	svc := newTestService(t, client, WithIDGenerator(func() string { return "thread-1" }))

	response, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{
		Participants:   []string{"a", "b", "c"},
		InitialMessage: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "thread-1", response.ThreadID)
	require.Equal(t, []string{"b", "c"}, response.Delivered)
	require.Empty(t, response.Failed)
	require.Equal(t, "Successfully created thread with participants: [a, b, c]", response.Message)
}

func TestCreateThreadSkipsRepeatsOfInitiator(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().CreateThread(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	svc := newTestService(t, client, WithIDGenerator(func() string { return "generated" }))
	response, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{
		Participants:   []string{"a", "a", "b", "b"},
		InitialMessage: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "generated", response.ThreadID)
	require.Equal(t, []string{"b"}, response.Delivered)
}

func TestCreateThreadWithoutMessageSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().CreateThread(gomock.Any(), gomock.Any()).Return("net-7", nil)
	client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, client)
	response, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{Participants: []string{"a", "b"}, InitialMessage: "  "})
	require.NoError(t, err)
	require.Equal(t, "net-7", response.ThreadID)

	thread, ok := svc.View().Thread("net-7")
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, thread.Participants)
}

func TestCreateThreadGeneratesDistinctIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	var seen []string
	client.EXPECT().
		CreateThread(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, thread types.Thread) (string, error) {
			seen = append(seen, thread.ID)
			return "", nil
		}).
		Times(2)

	svc := newTestService(t, client)
	req := types.CreateThreadRequest{Participants: []string{"a", "b"}}
	_, err := svc.CreateThread(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.CreateThread(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.NotEmpty(t, seen[0])
	require.NotEqual(t, seen[0], seen[1])
}

func TestCreateThreadPartialFanOutStillSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().CreateThread(gomock.Any(), gomock.Any()).Return("t-9", nil)
	client.EXPECT().SendMessage(gomock.Any(), gomock.Cond(func(msg types.Message) bool { return msg.Recipient == "b" })).
		Return(relay.NewError(relay.CategoryDeliveryFailed, "recipient 'b' is not registered"))
	client.EXPECT().SendMessage(gomock.Any(), gomock.Cond(func(msg types.Message) bool { return msg.Recipient == "c" })).
		Return(nil)

	messageBus := bus.NewMessageBus()
	t.Cleanup(messageBus.Close)
	events, unsubscribe := messageBus.SubscribeEvents(context.Background(), 8)
	defer unsubscribe()

	svc := newTestService(t, client, WithEvents(messageBus))
	response, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{
		Participants:   []string{"a", "b", "c"},
		InitialMessage: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, relay.StatusSuccess, response.Status)
	require.Equal(t, []string{"c"}, response.Delivered)
	require.Equal(t, []types.FanOutFailure{{Recipient: "b", Error: "recipient 'b' is not registered"}}, response.Failed)
	require.Contains(t, response.Message, "initial message failed for 1 of 2 recipients")

	var got []bus.EventType
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case event := <-events:
			got = append(got, event.Type)
		case <-timeout:
			t.Fatalf("events = %v, want thread_created and fanout_failed", got)
		}
	}
	require.Equal(t, []bus.EventType{bus.EventThreadCreated, bus.EventFanOutFailed}, got)
}

func TestCreateThreadUpstreamFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().CreateThread(gomock.Any(), gomock.Any()).Return("", errors.New("quota exceeded"))
	client.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, client)
	_, err := svc.CreateThread(context.Background(), types.CreateThreadRequest{Participants: []string{"a", "b"}, InitialMessage: "hi"})
	require.Equal(t, relay.CategoryThreadCreationFailed, relay.CategoryFromError(err))
	require.Equal(t, 0, svc.View().Stats().Threads)
}

func TestHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Health(gomock.Any()).Return(types.HealthStatus{Healthy: true, Version: "1.0"}, nil),
		client.EXPECT().Health(gomock.Any()).Return(types.HealthStatus{}, errors.New("connection refused")),
	)

	svc := newTestService(t, client)

	response, err := svc.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, relay.StatusOK, response.Status)
	require.Equal(t, "1.0", response.Upstream.Version)

	_, err = svc.Health(context.Background())
	require.Equal(t, relay.CategoryUnreachable, relay.CategoryFromError(err))
	require.Contains(t, relay.MessageFromError(err), "connection refused")
}
