package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for robot state machine actions.
// RobotSystem implements this interface to handle state entry/exit and
// provide guards for conditional transitions.
type Actions interface {
	// State entry actions
	EnterIdle(c *librefsm.Context) error
	EnterListening(c *librefsm.Context) error
	EnterThinking(c *librefsm.Context) error
	EnterMoving(c *librefsm.Context) error
	EnterExploring(c *librefsm.Context) error
	EnterError(c *librefsm.Context) error
	EnterShutdown(c *librefsm.Context) error

	// State exit actions
	ExitThinking(c *librefsm.Context) error  // cancels the outstanding query
	ExitMoving(c *librefsm.Context) error    // stops the motion timer
	ExitExploring(c *librefsm.Context) error // closes the mission and reports

	// Guards
	CanAutoRecover(c *librefsm.Context) bool // hazard-caused error, hold-down elapsed
}
