package game

import "errors"

var (
	ErrWrongPassword  = errors.New("wrong password")
	ErrGameInProgress = errors.New("game in progress")
	ErrSessionFull    = errors.New("session full")
	ErrNameTaken      = errors.New("name taken")
	ErrNotHost        = errors.New("not host")
	ErrNotAllReady    = errors.New("not all players ready")
	ErrPlayerUnknown  = errors.New("player unknown")
	ErrNotDrawer      = errors.New("not the drawer")
)
