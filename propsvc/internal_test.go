// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package propsvc

import (
	"testing"
)

func TestInternalSocketPairMessageRoundtrip(t *testing.T) {
	server, supervisor, err := NewInternalSocketPair()
	if err != nil {
		t.Fatalf("NewInternalSocketPair: %v", err)
	}
	defer server.Close()
	defer supervisor.Close()

	msg := InternalMessage{
		Kind:            MessagePropertyChanged,
		PropertyChanged: &PropertyChangedPayload{Name: "sys.boot_completed", Value: "1"},
	}
	if err := server.WriteMessage(msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := supervisor.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Kind != MessagePropertyChanged || got.PropertyChanged == nil {
		t.Fatalf("ReadMessage = %+v", got)
	}
	if got.PropertyChanged.Name != "sys.boot_completed" || got.PropertyChanged.Value != "1" {
		t.Errorf("PropertyChanged payload = %+v", got.PropertyChanged)
	}
}

func TestInternalSocketPairControlRequestRoundtrip(t *testing.T) {
	server, supervisor, err := NewInternalSocketPair()
	if err != nil {
		t.Fatalf("NewInternalSocketPair: %v", err)
	}
	defer server.Close()
	defer supervisor.Close()

	msg := InternalMessage{
		Kind: MessageControlRequest,
		ControlRequest: &ControlRequestPayload{
			Action: ActionRestart,
			Target: "logd",
		},
	}
	if err := server.WriteMessage(msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, fds, err := supervisor.ReadMessageWithFD()
	if err != nil {
		t.Fatalf("ReadMessageWithFD: %v", err)
	}
	if len(fds) != 0 {
		t.Errorf("expected no transferred fds, got %v", fds)
	}
	if got.ControlRequest == nil || got.ControlRequest.Action != ActionRestart || got.ControlRequest.Target != "logd" {
		t.Errorf("ControlRequest payload = %+v", got.ControlRequest)
	}
}

func TestInternalSocketPairWriteMessageWithFD(t *testing.T) {
	server, supervisor, err := NewInternalSocketPair()
	if err != nil {
		t.Fatalf("NewInternalSocketPair: %v", err)
	}
	defer server.Close()
	defer supervisor.Close()

	f, err := server.File()
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	defer f.Close()

	msg := InternalMessage{
		Kind: MessageControlRequest,
		ControlRequest: &ControlRequestPayload{Action: ActionStart, Target: "svc", ReplyFD: true},
	}
	if err := server.WriteMessageWithFD(msg, int(f.Fd())); err != nil {
		t.Fatalf("WriteMessageWithFD: %v", err)
	}

	got, fds, err := supervisor.ReadMessageWithFD()
	if err != nil {
		t.Fatalf("ReadMessageWithFD: %v", err)
	}
	if len(fds) != 1 {
		t.Fatalf("expected exactly one transferred fd, got %d", len(fds))
	}
	if !got.ControlRequest.ReplyFD {
		t.Error("ControlRequest.ReplyFD should be true")
	}
}
