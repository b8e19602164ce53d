// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one conversion at a time:
//  1. [InputView] : Enter a YouTube URL
//  2. [WorkingView] : Spinner and live progress while recognizing, searching or creating
//  3. [PreviewView] : Matched songs with ✓/✗ marks, y to create the playlist, n to cancel
//  4. [ResultView] : Outcome message and playlist link
//
// The [Model] receives progress from the converter's channel one update at a time through a tea.Cmd,
// so the converter's non-blocking sends never stall on the renderer.
package ui
