package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/yt2spotify/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStartFinished MsgKind = iota
	MsgProgressUpdate
	MsgConfirmFinished
)

type startFinished struct {
	err error
}

type confirmFinished struct {
	result *tasks.Result
	err    error
}

// startFinishedMsg is the constructor for [MsgStartFinished]
func startFinishedMsg(err error) Msg {
	return Msg{kind: MsgStartFinished, data: startFinished{err: err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// confirmFinishedMsg is the constructor for [MsgConfirmFinished]
func confirmFinishedMsg(result *tasks.Result, err error) Msg {
	return Msg{kind: MsgConfirmFinished, data: confirmFinished{result: result, err: err}}
}
