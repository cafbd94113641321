// Package conversation provides the type-safe domain model for Drey's
// coordination pipeline.
//
// # Overview
//
// A conversation is the unit of coordination tracking, scoped to one
// (workspace, channel, thread) triple. Every accepted chat-platform event is
// normalized into a CanonicalEvent, interpreted into a BehavioralSignal, and
// then driven through the lifecycle state machine defined in this package.
//
// # Core Concepts
//
// CanonicalEvent is the immutable normalized form of one inbound webhook
// message, independent of the raw wire format. Events are produced only by
// the ingestion parser and are never mutated afterwards.
//
// BehavioralSignal is the structured interpretation of one message: its
// intent, topic, ownership need and confidence. Signals are produced once per
// message by a signal extraction port and consumed immediately by the state
// machine and the decision engine.
//
// StateTransition is the immutable audit record of one successful lifecycle
// transition. The transition history of a conversation is append-only and
// strictly time-ordered.
//
// CoordinationDecision and CommunicationGap are the pipeline's outputs: a
// decision proposes at most one automated intervention, a gap records a
// detected coordination failure pattern. Both are findings, not mutations of
// conversation state.
//
// # State Machine
//
// Machine enforces the legal lifecycle transition table. Illegal transitions
// are an expected, frequent outcome and are reported as a nil transition,
// never as an error. The machine is cyclic: resolved conversations can reopen
// to idle or question_raised.
package conversation
