package command

import (
	"github.com/LdDl/annotrack-go/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Manager keeps bounded undo and redo history of executed commands
type Manager struct {
	undoStack  []Command
	redoStack  []Command
	maxHistory int
	bus        *events.Bus
	logger     zerolog.Logger
}

// NewManager creates history manager keeping at most maxHistory commands per stack
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &Manager{
		undoStack:  make([]Command, 0),
		redoStack:  make([]Command, 0),
		maxHistory: maxHistory,
		logger:     zerolog.Nop(),
	}
}

// NewManagerDefault creates history manager keeping 100 commands
func NewManagerDefault() *Manager {
	return NewManager(100)
}

// WithBus sets event bus for history notifications
func (manager *Manager) WithBus(bus *events.Bus) *Manager {
	manager.bus = bus
	return manager
}

// WithLogger sets logger
func (manager *Manager) WithLogger(logger zerolog.Logger) *Manager {
	manager.logger = logger.With().Str("component", "history").Logger()
	return manager
}

// Execute runs command and pushes it onto undo stack.
// Failed command is not pushed and leaves redo stack intact.
func (manager *Manager) Execute(cmd Command) error {
	if err := cmd.Execute(); err != nil {
		return err
	}
	manager.undoStack = pushBounded(manager.undoStack, cmd, manager.maxHistory)
	manager.redoStack = manager.redoStack[:0]
	manager.logger.Debug().Str("kind", cmd.Kind().String()).Str("description", cmd.Description()).Msg("command executed")
	manager.publish(events.KindCommandApplied, cmd)
	return nil
}

// Undo reverses the most recent command. Returns false when there is nothing to undo.
// When command can't be undone it stays on undo stack.
func (manager *Manager) Undo() (bool, error) {
	if len(manager.undoStack) == 0 {
		return false, nil
	}
	cmd := manager.undoStack[len(manager.undoStack)-1]
	if err := cmd.Undo(); err != nil {
		return false, errors.Wrapf(err, "Can't undo '%s'", cmd.Description())
	}
	manager.undoStack = manager.undoStack[:len(manager.undoStack)-1]
	manager.redoStack = pushBounded(manager.redoStack, cmd, manager.maxHistory)
	manager.logger.Debug().Str("kind", cmd.Kind().String()).Str("description", cmd.Description()).Msg("command undone")
	manager.publish(events.KindCommandUndone, cmd)
	return true, nil
}

// Redo re-executes the most recently undone command. Returns false when there is nothing to redo.
func (manager *Manager) Redo() (bool, error) {
	if len(manager.redoStack) == 0 {
		return false, nil
	}
	cmd := manager.redoStack[len(manager.redoStack)-1]
	if err := cmd.Execute(); err != nil {
		return false, errors.Wrapf(err, "Can't redo '%s'", cmd.Description())
	}
	manager.redoStack = manager.redoStack[:len(manager.redoStack)-1]
	manager.undoStack = pushBounded(manager.undoStack, cmd, manager.maxHistory)
	manager.logger.Debug().Str("kind", cmd.Kind().String()).Str("description", cmd.Description()).Msg("command redone")
	manager.publish(events.KindCommandRedone, cmd)
	return true, nil
}

// CanUndo reports whether undo stack is not empty
func (manager *Manager) CanUndo() bool {
	return len(manager.undoStack) > 0
}

// CanRedo reports whether redo stack is not empty
func (manager *Manager) CanRedo() bool {
	return len(manager.redoStack) > 0
}

// UndoDescription returns description of the command Undo would reverse
func (manager *Manager) UndoDescription() string {
	if !manager.CanUndo() {
		return ""
	}
	return manager.undoStack[len(manager.undoStack)-1].Description()
}

// RedoDescription returns description of the command Redo would re-execute
func (manager *Manager) RedoDescription() string {
	if !manager.CanRedo() {
		return ""
	}
	return manager.redoStack[len(manager.redoStack)-1].Description()
}

// Len returns sizes of undo and redo stacks
func (manager *Manager) Len() (int, int) {
	return len(manager.undoStack), len(manager.redoStack)
}

// Clear drops whole history
func (manager *Manager) Clear() {
	manager.undoStack = manager.undoStack[:0]
	manager.redoStack = manager.redoStack[:0]
}

func (manager *Manager) publish(kind events.Kind, cmd Command) {
	if manager.bus == nil {
		return
	}
	manager.bus.TryPublish(events.NewEvent(kind, cmd.Description()))
}

func pushBounded(stack []Command, cmd Command, limit int) []Command {
	stack = append(stack, cmd)
	if len(stack) > limit {
		// Oldest entry evicted
		copy(stack, stack[1:])
		stack[len(stack)-1] = nil
		stack = stack[:len(stack)-1]
	}
	return stack
}
