package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcon-status/internal/chat"
)

type fakeREST struct {
	channels map[string]*discordgo.Channel
	getErr   error
	editErr  error
	edits    []string
}

func (f *fakeREST) Channel(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.channels[id], nil
}

func (f *fakeREST) ChannelEdit(id string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, id+"="+data.Name)
	ch := f.channels[id]
	ch.Name = data.Name
	return ch, nil
}

func restErr(status, code int) error {
	e := &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
	}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code, Message: "x"}
	}
	return e
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unknown channel code", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), chat.ErrChannelNotFound},
		{"missing permissions code", restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), chat.ErrMissingPermissions},
		{"missing access code", restErr(http.StatusForbidden, discordgo.ErrCodeMissingAccess), chat.ErrMissingPermissions},
		{"bare 404", restErr(http.StatusNotFound, 0), chat.ErrChannelNotFound},
		{"bare 403", restErr(http.StatusForbidden, 0), chat.ErrMissingPermissions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	other := restErr(http.StatusInternalServerError, 0)
	got := mapError(other)
	assert.NotErrorIs(t, got, chat.ErrChannelNotFound)
	assert.NotErrorIs(t, got, chat.ErrMissingPermissions)

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestClient_ChannelAndRename(t *testing.T) {
	rest := &fakeREST{channels: map[string]*discordgo.Channel{
		"1": {ID: "1", Name: "old"},
	}}
	c := newClient(rest, WithRenameInterval(0))

	ch, err := c.Channel(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, chat.Channel{ID: "1", Name: "old"}, ch)

	_, err = c.Channel(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrChannelNotFound)

	require.NoError(t, c.RenameChannel(context.Background(), "1", "new"))
	assert.Equal(t, []string{"1=new"}, rest.edits)
}

func TestClient_RenameErrorsAreClassified(t *testing.T) {
	rest := &fakeREST{
		channels: map[string]*discordgo.Channel{"1": {ID: "1"}},
		editErr:  restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions),
	}
	c := newClient(rest, WithRenameInterval(0))

	err := c.RenameChannel(context.Background(), "1", "new")
	assert.ErrorIs(t, err, chat.ErrMissingPermissions)
}

func TestClient_RenamePacingHonoursContext(t *testing.T) {
	rest := &fakeREST{channels: map[string]*discordgo.Channel{"1": {ID: "1"}}}
	c := newClient(rest, WithRenameInterval(time.Hour))

	require.NoError(t, c.RenameChannel(context.Background(), "1", "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.RenameChannel(ctx, "1", "b")
	require.Error(t, err)
	assert.Equal(t, []string{"1=a"}, rest.edits)
}

func TestNew_RejectsEmptyToken(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
