package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubReplacesDuplicateUserClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	first := &Client{hub: h, send: make(chan []byte, 1), userID: 42}
	second := &Client{hub: h, send: make(chan []byte, 1), userID: 42}

	h.register <- first
	h.register <- second

	// Канал вытесненного клиента закрывается сразу, его writePump
	// не висит до ошибки на старом соединении.
	select {
	case _, open := <-first.send:
		assert.False(t, open, "канал вытесненного клиента должен быть закрыт")
	case <-time.After(time.Second):
		t.Fatal("канал вытесненного клиента не закрыт")
	}

	// Запоздалое отключение вытесненного клиента не удаляет сменщика.
	h.unregister <- first
	h.broadcast <- []byte(`{"type":"ping"}`)

	select {
	case msg := <-second.send:
		assert.NotEmpty(t, msg)
	case <-time.After(time.Second):
		t.Fatal("новый клиент не получил событие после отключения старого")
	}
}

func TestHubUnregisterClosesSendOnce(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := &Client{hub: h, send: make(chan []byte, 1), userID: 7}
	h.register <- client
	h.unregister <- client

	select {
	case _, open := <-client.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("канал клиента не закрыт после отключения")
	}

	// Повторное отключение того же клиента - no-op, без паники
	// на закрытом канале.
	h.unregister <- client
	h.broadcast <- []byte(`{"type":"ping"}`)
	time.Sleep(50 * time.Millisecond)
}
