package room

import (
	"sort"
	"strings"

	"musicroom-sync-client/internal/handshake"
	"musicroom-sync-client/internal/protocol"
)

func (c *Controls) Participant() *protocol.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

// DirectMessages returns the open conversation ordered by index.
func (c *Controls) DirectMessages() []protocol.DirectMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.DirectMessage(nil), c.dms...)
}

func (c *Controls) dmReady(op string) (protocol.User, protocol.User, error) {
	u, _, err := c.ready(op, false)
	if err != nil {
		return protocol.User{}, protocol.User{}, err
	}
	c.mu.Lock()
	p := c.participant
	c.mu.Unlock()
	if p == nil {
		c.log.Debug().Str("op", op).Msg("skipped: no participant")
		return protocol.User{}, protocol.User{}, ErrNoParticipant
	}
	return u, *p, nil
}

// EnterDM opens the conversation with participant and asks for its history.
func (c *Controls) EnterDM(participant protocol.User) error {
	u, _, err := c.ready("enterDirectMessage", false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.participant = &participant
	c.dms = nil
	c.mu.Unlock()

	err = c.emit(protocol.EventEnterDM, protocol.DMEvent{UserID: u.UserID, ParticipantID: participant.UserID})
	if err != nil {
		return err
	}
	c.hs.Dispatch(handshake.DMJoinRequested)

	if err := c.RequestDMHistory(); err != nil {
		c.log.Debug().Err(err).Msg("dm history after enter")
	}
	return nil
}

// ExitDM closes the open conversation, if any.
func (c *Controls) ExitDM() error {
	st := c.hs.State()
	if !st.DMJoined() && !st.SentDMJoin() {
		return nil
	}
	u, _, err := c.ready("exitDirectMessage", false)
	if err != nil {
		return err
	}
	if err := c.emit(protocol.EventExitDM, protocol.DMEvent{UserID: u.UserID}); err != nil {
		return err
	}
	c.hs.Dispatch(handshake.DMLeaveRequested)

	c.mu.Lock()
	c.participant = nil
	c.dms = nil
	c.mu.Unlock()
	return nil
}

func (c *Controls) SendDirectMessage(body string) error {
	u, p, err := c.dmReady("directMessage")
	if err != nil {
		return err
	}
	c.clock.RefreshAsync()
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return c.emit(protocol.EventDirectMsg, protocol.DirectMessage{
		MessageBody: body,
		Sender:      u,
		Recipient:   p,
		DateSent:    c.now().UTC(),
	})
}

// EditDirectMessage replaces the body of msg. Blank text is ignored.
func (c *Controls) EditDirectMessage(msg protocol.DirectMessage, body string) error {
	u, p, err := c.dmReady("modifyDirectMessage")
	if err != nil {
		return err
	}
	c.clock.RefreshAsync()
	if strings.TrimSpace(body) == "" {
		return nil
	}
	msg.MessageBody = body
	return c.emit(protocol.EventModifyDM, protocol.ModifyDM{
		UserID:        u.UserID,
		ParticipantID: p.UserID,
		Action:        protocol.ModifyActionEdit,
		Message:       msg,
	})
}

func (c *Controls) DeleteDirectMessage(msg protocol.DirectMessage) error {
	u, p, err := c.dmReady("modifyDirectMessage")
	if err != nil {
		return err
	}
	return c.emit(protocol.EventModifyDM, protocol.ModifyDM{
		UserID:        u.UserID,
		ParticipantID: p.UserID,
		Action:        protocol.ModifyActionDelete,
		Message:       msg,
	})
}

func (c *Controls) RequestDMHistory() error {
	u, p, err := c.dmReady("getDirectMessageHistory")
	if err != nil {
		return err
	}
	if !c.hs.TryRequest(handshake.DMsRequested) {
		c.log.Debug().Msg("dm history already requested")
		return ErrDuplicateRequest
	}
	return c.emit(protocol.EventGetDMHistory, protocol.DMEvent{UserID: u.UserID, ParticipantID: p.UserID})
}

func sortDMs(dms []protocol.DirectMessage) {
	sort.SliceStable(dms, func(i, j int) bool { return dms[i].Index < dms[j].Index })
}

// inConversation reports whether m belongs to the open conversation.
func (c *Controls) inConversation(m protocol.DirectMessage) bool {
	if c.participant == nil {
		return false
	}
	pid := c.participant.UserID
	return m.Sender.UserID == pid || m.Recipient.UserID == pid
}
