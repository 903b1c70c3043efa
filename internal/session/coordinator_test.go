package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/seawire/broadside/internal/dependencies/mocks"
	"github.com/seawire/broadside/internal/game"
	"github.com/seawire/broadside/internal/lobby"
	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/testutil"
	"github.com/seawire/broadside/internal/transport"
)

const (
	aliceID = model.UserID("u_alice")
	bobID   = model.UserID("u_bob")
	carolID = model.UserID("u_carol")

	aliceClient = transport.ClientID("client-alice")
	bobClient   = transport.ClientID("client-bob")
	carolClient = transport.ClientID("client-carol")
)

// sentMessage records one outbound delivery through the messenger
type sentMessage struct {
	Client  transport.ClientID // set for direct sends
	Room    string             // set for room sends
	Event   string
	Payload any
}

// recorderMessenger is an in-memory Messenger capturing everything sent
type recorderMessenger struct {
	Sent  []sentMessage
	Rooms map[string]map[transport.ClientID]bool
}

var _ transport.Messenger = (*recorderMessenger)(nil)

func newRecorderMessenger() *recorderMessenger {
	return &recorderMessenger{Rooms: make(map[string]map[transport.ClientID]bool)}
}

func (m *recorderMessenger) SendTo(client transport.ClientID, event string, payload any) {
	m.Sent = append(m.Sent, sentMessage{Client: client, Event: event, Payload: payload})
}

func (m *recorderMessenger) SendToRoom(roomID string, event string, payload any) {
	m.Sent = append(m.Sent, sentMessage{Room: roomID, Event: event, Payload: payload})
}

func (m *recorderMessenger) BroadcastAll(event string, payload any) {
	m.Sent = append(m.Sent, sentMessage{Event: event, Payload: payload})
}

func (m *recorderMessenger) JoinRoom(client transport.ClientID, roomID string) {
	if m.Rooms[roomID] == nil {
		m.Rooms[roomID] = make(map[transport.ClientID]bool)
	}
	m.Rooms[roomID][client] = true
}

func (m *recorderMessenger) LeaveRoom(client transport.ClientID, roomID string) {
	delete(m.Rooms[roomID], client)
}

// last returns the most recent message with the given event name
func (m *recorderMessenger) last(event string) (sentMessage, bool) {
	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].Event == event {
			return m.Sent[i], true
		}
	}
	return sentMessage{}, false
}

func (m *recorderMessenger) reset() {
	m.Sent = nil
}

// stubUsers resolves usernames from a fixed map
type stubUsers struct {
	users map[model.UserID]string
}

func (s *stubUsers) LookupUser(_ context.Context, id model.UserID) (*model.User, error) {
	name, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &model.User{ID: id, Username: name}, nil
}

type CoordinatorSuite struct {
	suite.Suite
	lobby       *lobby.Registry
	matches     *game.Registry
	random      *mocks.MockRandom
	messenger   *recorderMessenger
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.lobby = lobby.NewRegistry()
	s.random = mocks.NewMockRandom()
	s.matches = game.NewRegistry(s.random)
	s.messenger = newRecorderMessenger()
	users := &stubUsers{users: map[model.UserID]string{
		aliceID: "Alice",
		bobID:   "Bob",
		carolID: "Carol",
	}}
	s.coordinator = NewCoordinator(s.lobby, s.matches, users, s.messenger, testutil.NopLogger())
	s.ctx = context.Background()
}

// connectAndJoin registers a connection and joins its user to the lobby
func (s *CoordinatorSuite) connectAndJoin(client transport.ClientID, userID model.UserID) {
	s.coordinator.Connect(client, userID)
	s.coordinator.JoinLobby(s.ctx, client)
}

// formRoom walks alice and bob through challenge and acceptance
func (s *CoordinatorSuite) formRoom() string {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)

	challenge := model.ChallengePayload{ChallengerUserID: aliceID, ChallengedUserID: bobID}
	s.coordinator.RequestChallenge(aliceClient, challenge)
	s.coordinator.AcceptChallenge(bobClient, challenge)

	return game.RoomID(aliceID, bobID)
}

// startGame forms a room and readies both fleets, alice to shoot first
func (s *CoordinatorSuite) startGame() string {
	roomID := s.formRoom()
	s.random.QueueIntn(0) // alice starts

	s.coordinator.PlayerReady(s.ctx, aliceClient, model.PlayerReadyPayload{
		PlayerID: aliceID, RoomID: roomID, Ships: fleet(),
	})
	s.coordinator.PlayerReady(s.ctx, bobClient, model.PlayerReadyPayload{
		PlayerID: bobID, RoomID: roomID, Ships: fleet(),
	})
	return roomID
}

func fleet() map[string][]string {
	return map[string][]string{
		"carrier":    {"0,0", "0,1", "0,2", "0,3", "0,4"},
		"battleship": {"1,0", "1,1", "1,2", "1,3"},
		"cruiser":    {"2,0", "2,1", "2,2"},
		"submarine":  {"3,0", "3,1", "3,2"},
		"destroyer":  {"4,0", "4,1"},
	}
}

// Lobby tests

func (s *CoordinatorSuite) TestJoinLobbyBroadcastsSnapshot() {
	s.connectAndJoin(aliceClient, aliceID)

	msg, ok := s.messenger.last(model.EventUpdateLobby)
	s.Require().True(ok)

	snapshot := msg.Payload.(map[model.UserID]model.LobbyUser)
	s.Len(snapshot, 1)
	s.Equal("Alice", snapshot[aliceID].Username)
}

func (s *CoordinatorSuite) TestJoinLobbyWithUnknownUserEmitsNothing() {
	s.coordinator.Connect(carolClient, "u_ghost")
	s.coordinator.JoinLobby(s.ctx, carolClient)

	s.Empty(s.messenger.Sent)
	s.Equal(0, s.lobby.Len())
}

func (s *CoordinatorSuite) TestLeaveLobbyBroadcastsSnapshot() {
	s.connectAndJoin(aliceClient, aliceID)
	s.messenger.reset()

	s.coordinator.LeaveLobby(aliceClient)

	msg, ok := s.messenger.last(model.EventUpdateLobby)
	s.Require().True(ok)
	s.Empty(msg.Payload.(map[model.UserID]model.LobbyUser))
}

func (s *CoordinatorSuite) TestDispatchRoutesJoinLobby() {
	s.coordinator.Connect(aliceClient, aliceID)

	raw, _ := json.Marshal(model.Envelope{Event: model.EventJoinLobby})
	s.coordinator.Dispatch(s.ctx, aliceClient, raw)

	s.Equal(1, s.lobby.Len())
}

func (s *CoordinatorSuite) TestDispatchIgnoresMalformedFrame() {
	s.coordinator.Connect(aliceClient, aliceID)
	s.coordinator.Dispatch(s.ctx, aliceClient, []byte("not json"))

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestDispatchIgnoresUnknownEvent() {
	s.coordinator.Connect(aliceClient, aliceID)

	raw, _ := json.Marshal(model.Envelope{Event: "warp_drive"})
	s.coordinator.Dispatch(s.ctx, aliceClient, raw)

	s.Empty(s.messenger.Sent)
}

// Challenge tests

func (s *CoordinatorSuite) TestRequestChallengeNotifiesChallenged() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.messenger.reset()

	s.coordinator.RequestChallenge(aliceClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})

	msg, ok := s.messenger.last(model.EventChallengeReceived)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)

	payload := msg.Payload.(model.ChallengeReceivedPayload)
	s.Equal(aliceID, payload.ChallengerUserID)
	s.Equal("Alice", payload.ChallengerUsername)
}

func (s *CoordinatorSuite) TestRequestChallengeMarksBothPending() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)

	s.coordinator.RequestChallenge(aliceClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})

	msg, _ := s.messenger.last(model.EventUpdateLobby)
	snapshot := msg.Payload.(map[model.UserID]model.LobbyUser)
	s.True(snapshot[aliceID].InPendingChallenge)
	s.True(snapshot[bobID].InPendingChallenge)
}

func (s *CoordinatorSuite) TestChallengeAgainstBusyUserIsUnavailable() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.connectAndJoin(carolClient, carolID)

	s.coordinator.RequestChallenge(aliceClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})
	s.messenger.reset()

	s.coordinator.RequestChallenge(carolClient, model.ChallengePayload{
		ChallengerUserID: carolID, ChallengedUserID: bobID,
	})

	msg, ok := s.messenger.last(model.EventChallengeUnavailable)
	s.Require().True(ok)
	s.Equal(carolClient, msg.Client)

	_, received := s.messenger.last(model.EventChallengeReceived)
	s.False(received)
}

func (s *CoordinatorSuite) TestChallengeAgainstAbsentUserIsUnavailable() {
	s.connectAndJoin(aliceClient, aliceID)
	s.messenger.reset()

	s.coordinator.RequestChallenge(aliceClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})

	msg, ok := s.messenger.last(model.EventChallengeUnavailable)
	s.Require().True(ok)
	s.Equal(aliceClient, msg.Client)
}

func (s *CoordinatorSuite) TestAcceptChallengeFormsRoom() {
	roomID := s.formRoom()

	msg, ok := s.messenger.last(model.EventRoomReady)
	s.Require().True(ok)
	s.Equal(roomID, msg.Room)
	s.Equal(roomID, msg.Payload.(model.RoomReadyPayload).RoomID)

	s.True(s.messenger.Rooms[roomID][aliceClient])
	s.True(s.messenger.Rooms[roomID][bobClient])

	match, ok := s.matches.Get(roomID)
	s.Require().True(ok)
	s.Equal(game.StateForming, match.State())
}

func (s *CoordinatorSuite) TestAcceptChallengeEmptiesLobby() {
	s.formRoom()

	msg, _ := s.messenger.last(model.EventUpdateLobby)
	s.Empty(msg.Payload.(map[model.UserID]model.LobbyUser))
}

func (s *CoordinatorSuite) TestAcceptAfterChallengerLeftIsUnavailable() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	challenge := model.ChallengePayload{ChallengerUserID: aliceID, ChallengedUserID: bobID}
	s.coordinator.RequestChallenge(aliceClient, challenge)
	s.coordinator.LeaveLobby(aliceClient)
	s.messenger.reset()

	s.coordinator.AcceptChallenge(bobClient, challenge)

	msg, ok := s.messenger.last(model.EventChallengeUnavailable)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)
	s.Equal(0, s.matches.Len())
}

func (s *CoordinatorSuite) TestRejectChallengeNotifiesChallenger() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	challenge := model.ChallengePayload{ChallengerUserID: aliceID, ChallengedUserID: bobID}
	s.coordinator.RequestChallenge(aliceClient, challenge)
	s.messenger.reset()

	s.coordinator.RejectChallenge(bobClient, challenge)

	msg, ok := s.messenger.last(model.EventChallengeRejected)
	s.Require().True(ok)
	s.Equal(aliceClient, msg.Client)
	s.Equal(bobID, msg.Payload.(model.ChallengeRejectedPayload).ChallengedUserID)

	snapshot, _ := s.messenger.last(model.EventUpdateLobby)
	users := snapshot.Payload.(map[model.UserID]model.LobbyUser)
	s.False(users[aliceID].InPendingChallenge)
	s.False(users[bobID].InPendingChallenge)
}

func (s *CoordinatorSuite) TestCancelChallengeNotifiesChallenged() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	challenge := model.ChallengePayload{ChallengerUserID: aliceID, ChallengedUserID: bobID}
	s.coordinator.RequestChallenge(aliceClient, challenge)
	s.messenger.reset()

	s.coordinator.CancelChallenge(aliceClient, challenge)

	msg, ok := s.messenger.last(model.EventChallengeCanceled)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)
	s.Equal(aliceID, msg.Payload.(model.ChallengeCanceledPayload).ChallengerUserID)
}

func (s *CoordinatorSuite) TestRejectWithoutPendingChallengeEmitsNothing() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.messenger.reset()

	s.coordinator.RejectChallenge(bobClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestAcceptFromWrongConnectionIsDropped() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.connectAndJoin(carolClient, carolID)
	challenge := model.ChallengePayload{ChallengerUserID: aliceID, ChallengedUserID: bobID}
	s.coordinator.RequestChallenge(aliceClient, challenge)
	s.messenger.reset()

	// carol's connection tries to accept on bob's behalf
	s.coordinator.AcceptChallenge(carolClient, challenge)

	s.Empty(s.messenger.Sent)
	s.Equal(0, s.matches.Len())
}

func (s *CoordinatorSuite) TestRequestFromWrongConnectionIsDropped() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.connectAndJoin(carolClient, carolID)
	s.messenger.reset()

	// carol's connection issues a challenge claiming to be alice
	s.coordinator.RequestChallenge(carolClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})

	s.Empty(s.messenger.Sent)
}

// Ready tests

func (s *CoordinatorSuite) TestFirstReadyNotifiesOpponentOnly() {
	roomID := s.formRoom()
	s.messenger.reset()

	s.coordinator.PlayerReady(s.ctx, aliceClient, model.PlayerReadyPayload{
		PlayerID: aliceID, RoomID: roomID, Ships: fleet(),
	})

	msg, ok := s.messenger.last(model.EventOpponentReady)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)
	s.Equal("Alice", msg.Payload.(model.OpponentReadyPayload).Username)

	_, allReady := s.messenger.last(model.EventAllPlayersReady)
	s.False(allReady)
}

func (s *CoordinatorSuite) TestSecondReadyAnnouncesStartingTurn() {
	roomID := s.startGame()

	msg, ok := s.messenger.last(model.EventAllPlayersReady)
	s.Require().True(ok)
	s.Equal(roomID, msg.Room)

	payload := msg.Payload.(model.AllPlayersReadyPayload)
	s.Equal(roomID, payload.RoomID)
	s.Equal(aliceID, payload.CurrentPlayerTurn)
}

func (s *CoordinatorSuite) TestReadyWithIncompleteFleetEmitsNothing() {
	roomID := s.formRoom()
	s.messenger.reset()

	s.coordinator.PlayerReady(s.ctx, aliceClient, model.PlayerReadyPayload{
		PlayerID: aliceID,
		RoomID:   roomID,
		Ships:    map[string][]string{"destroyer": {"4,0", "4,1"}},
	})

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestReadyForUnknownRoomEmitsNothing() {
	s.coordinator.PlayerReady(s.ctx, aliceClient, model.PlayerReadyPayload{
		PlayerID: aliceID, RoomID: "room-nobody-nobody", Ships: fleet(),
	})

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestResetShipsNotifiesOpponent() {
	roomID := s.formRoom()
	s.coordinator.PlayerReady(s.ctx, aliceClient, model.PlayerReadyPayload{
		PlayerID: aliceID, RoomID: roomID, Ships: fleet(),
	})
	s.messenger.reset()

	s.coordinator.ResetShips(aliceClient, model.ResetShipsPayload{PlayerID: aliceID, RoomID: roomID})

	msg, ok := s.messenger.last(model.EventOpponentReset)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)
	s.Equal(aliceID, msg.Payload.(model.OpponentResetPayload).PlayerID)
}

// Shot tests

func (s *CoordinatorSuite) TestShotFromWrongConnectionIsDropped() {
	roomID := s.startGame()
	s.messenger.reset()

	// bob's connection submits a shot naming alice, whose turn it is
	s.coordinator.ShotCalled(s.ctx, bobClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "0,0",
	})

	s.Empty(s.messenger.Sent)

	// the turn did not move: alice can still shoot for herself
	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "9,9",
	})
	_, ok := s.messenger.last(model.EventShotMiss)
	s.True(ok)
}

func (s *CoordinatorSuite) TestMissBroadcastsToRoom() {
	roomID := s.startGame()
	s.messenger.reset()

	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "9,9",
	})

	msg, ok := s.messenger.last(model.EventShotMiss)
	s.Require().True(ok)
	s.Equal(roomID, msg.Room)

	payload := msg.Payload.(model.ShotResultPayload)
	s.Equal("9,9", payload.Square)
	s.Equal(bobID, payload.CurrentPlayerTurn)
}

func (s *CoordinatorSuite) TestHitBroadcastsToRoom() {
	roomID := s.startGame()
	s.messenger.reset()

	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "0,0",
	})

	msg, ok := s.messenger.last(model.EventShotHit)
	s.Require().True(ok)
	s.Equal(bobID, msg.Payload.(model.ShotResultPayload).CurrentPlayerTurn)
}

func (s *CoordinatorSuite) TestSinkBroadcastsShipSunk() {
	roomID := s.startGame()
	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "4,0",
	})
	s.coordinator.ShotCalled(s.ctx, bobClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: bobID, Square: "9,9",
	})
	s.messenger.reset()

	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "4,1",
	})

	_, ok := s.messenger.last(model.EventShipSunk)
	s.True(ok)
}

func (s *CoordinatorSuite) TestOutOfTurnShotEmitsNothing() {
	roomID := s.startGame()
	s.messenger.reset()

	s.coordinator.ShotCalled(s.ctx, bobClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: bobID, Square: "0,0",
	})

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestDuplicateShotEmitsNothing() {
	roomID := s.startGame()
	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "0,0",
	})
	s.messenger.reset()

	s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
		RoomID: roomID, CurrentPlayerID: aliceID, Square: "0,0",
	})

	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestWinningShotBroadcastsGameOverAndTearsDown() {
	roomID := s.startGame()

	cells := []string{
		"0,0", "0,1", "0,2", "0,3", "0,4",
		"1,0", "1,1", "1,2", "1,3",
		"2,0", "2,1", "2,2",
		"3,0", "3,1", "3,2",
		"4,0", "4,1",
	}
	for i, cell := range cells {
		s.coordinator.ShotCalled(s.ctx, aliceClient, model.ShotCalledPayload{
			RoomID: roomID, CurrentPlayerID: aliceID, Square: cell,
		})
		if i < len(cells)-1 {
			s.coordinator.ShotCalled(s.ctx, bobClient, model.ShotCalledPayload{
				RoomID: roomID, CurrentPlayerID: bobID, Square: "9,9",
			})
		}
	}

	msg, ok := s.messenger.last(model.EventGameOver)
	s.Require().True(ok)
	s.Equal(roomID, msg.Room)

	payload := msg.Payload.(model.GameOverPayload)
	s.Equal(aliceID, payload.WinnerID)
	s.Equal("Alice", payload.Winner)

	_, stillThere := s.matches.Get(roomID)
	s.False(stillThere)
	s.Empty(s.messenger.Rooms[roomID])
}

// Departure tests

func (s *CoordinatorSuite) TestLeaveGameBeforeStartCancels() {
	roomID := s.formRoom()
	s.messenger.reset()

	s.coordinator.LeaveGame(s.ctx, aliceClient, model.LeaveGamePayload{
		RoomID: roomID, PlayerID: aliceID,
	})

	msg, ok := s.messenger.last(model.EventGameCancelled)
	s.Require().True(ok)
	s.Equal(roomID, msg.Room)

	_, stillThere := s.matches.Get(roomID)
	s.False(stillThere)
}

func (s *CoordinatorSuite) TestLeaveGameInProgressForfeits() {
	roomID := s.startGame()
	s.messenger.reset()

	s.coordinator.LeaveGame(s.ctx, aliceClient, model.LeaveGamePayload{
		RoomID: roomID, PlayerID: aliceID,
	})

	msg, ok := s.messenger.last(model.EventGameOver)
	s.Require().True(ok)

	payload := msg.Payload.(model.GameOverPayload)
	s.Equal(bobID, payload.WinnerID)
	s.Equal("Bob", payload.Winner)

	_, stillThere := s.matches.Get(roomID)
	s.False(stillThere)
}

func (s *CoordinatorSuite) TestLeaveGameFromWrongConnectionIsDropped() {
	roomID := s.startGame()
	s.messenger.reset()

	// bob's connection claims alice is leaving; her game must survive
	s.coordinator.LeaveGame(s.ctx, bobClient, model.LeaveGamePayload{
		RoomID: roomID, PlayerID: aliceID,
	})

	s.Empty(s.messenger.Sent)
	_, stillThere := s.matches.Get(roomID)
	s.True(stillThere)
}

func (s *CoordinatorSuite) TestForfeitReleasesSurvivorRoomMembership() {
	roomID := s.startGame()
	s.Require().True(s.messenger.Rooms[roomID][bobClient])

	s.coordinator.Disconnect(s.ctx, aliceClient)

	s.False(s.messenger.Rooms[roomID][bobClient])
}

func (s *CoordinatorSuite) TestDisconnectFromLobbyBroadcasts() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.messenger.reset()

	s.coordinator.Disconnect(s.ctx, aliceClient)

	msg, ok := s.messenger.last(model.EventUpdateLobby)
	s.Require().True(ok)

	snapshot := msg.Payload.(map[model.UserID]model.LobbyUser)
	s.Len(snapshot, 1)
	s.NotContains(snapshot, aliceID)
}

func (s *CoordinatorSuite) TestDisconnectMidGameForfeits() {
	roomID := s.startGame()
	s.messenger.reset()

	s.coordinator.Disconnect(s.ctx, aliceClient)

	msg, ok := s.messenger.last(model.EventGameOver)
	s.Require().True(ok)
	s.Equal(bobID, msg.Payload.(model.GameOverPayload).WinnerID)

	_, stillThere := s.matches.Get(roomID)
	s.False(stillThere)
}

func (s *CoordinatorSuite) TestDisconnectWhileFormingCancels() {
	roomID := s.formRoom()
	s.messenger.reset()

	s.coordinator.Disconnect(s.ctx, bobClient)

	_, ok := s.messenger.last(model.EventGameCancelled)
	s.True(ok)

	_, stillThere := s.matches.Get(roomID)
	s.False(stillThere)
}

func (s *CoordinatorSuite) TestSecondDisconnectEmitsNoGameEvents() {
	s.startGame()
	s.coordinator.Disconnect(s.ctx, aliceClient)
	s.messenger.reset()

	// alice's forfeit already tore the room down and unbound bob
	s.coordinator.Disconnect(s.ctx, bobClient)

	_, gameOver := s.messenger.last(model.EventGameOver)
	s.False(gameOver)
	_, cancelled := s.messenger.last(model.EventGameCancelled)
	s.False(cancelled)
	s.Equal(0, s.matches.Len())
}

func (s *CoordinatorSuite) TestUnknownClientDisconnectIsNoOp() {
	s.coordinator.Disconnect(s.ctx, "client-ghost")
	s.Empty(s.messenger.Sent)
}

func (s *CoordinatorSuite) TestDisconnectMidChallengeReleasesCounterpart() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.connectAndJoin(carolClient, carolID)
	s.coordinator.RequestChallenge(aliceClient, model.ChallengePayload{
		ChallengerUserID: aliceID, ChallengedUserID: bobID,
	})
	s.messenger.reset()

	s.coordinator.Disconnect(s.ctx, aliceClient)

	msg, ok := s.messenger.last(model.EventChallengeCanceled)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)
	s.Equal(aliceID, msg.Payload.(model.ChallengeCanceledPayload).ChallengerUserID)

	snapshot, _ := s.messenger.last(model.EventUpdateLobby)
	users := snapshot.Payload.(map[model.UserID]model.LobbyUser)
	s.False(users[bobID].InPendingChallenge)

	// bob is open again: carol's fresh challenge reaches him
	s.messenger.reset()
	s.coordinator.RequestChallenge(carolClient, model.ChallengePayload{
		ChallengerUserID: carolID, ChallengedUserID: bobID,
	})
	received, ok := s.messenger.last(model.EventChallengeReceived)
	s.Require().True(ok)
	s.Equal(bobClient, received.Client)
}

func (s *CoordinatorSuite) TestLeaveLobbyMidChallengeReleasesCounterpart() {
	s.connectAndJoin(aliceClient, aliceID)
	s.connectAndJoin(bobClient, bobID)
	s.coordinator.RequestChallenge(bobClient, model.ChallengePayload{
		ChallengerUserID: bobID, ChallengedUserID: aliceID,
	})
	s.messenger.reset()

	s.coordinator.LeaveLobby(aliceClient)

	msg, ok := s.messenger.last(model.EventChallengeCanceled)
	s.Require().True(ok)
	s.Equal(bobClient, msg.Client)

	snapshot, _ := s.messenger.last(model.EventUpdateLobby)
	users := snapshot.Payload.(map[model.UserID]model.LobbyUser)
	s.False(users[bobID].InPendingChallenge)
}
