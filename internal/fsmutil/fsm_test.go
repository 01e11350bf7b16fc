package fsmutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type state string

const (
	sOpen   state = "open"
	sClosed state = "closed"
	sLocked state = "locked"
)

type action string

const (
	aOpen  action = "open"
	aClose action = "close"
	aLock  action = "lock"
)

func doorTable() Table[state, action] {
	return Table[state, action]{
		aOpen:  {From: FromSet(sClosed), To: sOpen},
		aClose: {From: FromSet(sOpen), To: sClosed},
		aLock:  {From: FromSet(sClosed), To: sLocked},
	}
}

func TestApplySuccess(t *testing.T) {
	tbl := doorTable()
	to, err := tbl.Apply(sClosed, aOpen)
	require.NoError(t, err)
	require.Equal(t, sOpen, to)
}

func TestApplyInvalidFromState(t *testing.T) {
	tbl := doorTable()
	_, err := tbl.Apply(sOpen, aLock)
	require.Error(t, err)

	var invalid *InvalidTransitionError[state, action]
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, map[state]bool{sClosed: true}, invalid.From)
}

func TestApplyUnknownAction(t *testing.T) {
	tbl := doorTable()
	_, err := tbl.Apply(sOpen, action("teleport"))
	require.Error(t, err)

	var invalid *InvalidTransitionError[state, action]
	require.ErrorAs(t, err, &invalid)
	require.Nil(t, invalid.From)
}

func TestValidActions(t *testing.T) {
	tbl := doorTable()
	actions := tbl.ValidActions(sClosed)
	require.ElementsMatch(t, []action{aOpen, aLock}, actions)
}
