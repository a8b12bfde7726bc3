package messaging

import (
	"strings"
	"testing"
)

func TestDecodeMissionRequest(t *testing.T) {
	data := []byte(`{
		"msg_type": "mission_request",
		"msg_id": "abc-123",
		"sender": "wms",
		"payload": {
			"kind": "transport",
			"priority": 7,
			"waypoints": [{"x": 1.5, "y": 2.5}, {"x": 9.5, "y": 2.5}],
			"payload_class": 2
		}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.MsgType != "mission_request" || env.Sender != "wms" {
		t.Errorf("envelope = %+v", env)
	}
	req, ok := env.Payload.(MissionRequest)
	if !ok {
		t.Fatalf("payload type = %T, want MissionRequest", env.Payload)
	}
	if req.Kind != "transport" || req.Priority != 7 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Waypoints) != 2 || req.Waypoints[1].X != 9.5 {
		t.Errorf("waypoints = %v", req.Waypoints)
	}
	if req.PayloadClass != 2 {
		t.Errorf("payload class = %d, want 2", req.PayloadClass)
	}
}

func TestDecodeTelemetryPayloads(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, payload any)
	}{
		{
			name: "position_report",
			data: `{"msg_type":"position_report","sender":"amr-01","payload":{"robot_id":"amr-01","x":3.2,"y":4.1,"heading":1.57}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(PositionReport)
				if !ok {
					t.Fatalf("type = %T", payload)
				}
				if p.RobotID != "amr-01" || p.X != 3.2 {
					t.Errorf("report = %+v", p)
				}
			},
		},
		{
			name: "battery_report",
			data: `{"msg_type":"battery_report","sender":"amr-01","payload":{"robot_id":"amr-01","percent":18.5,"runtime_seconds":1200}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(BatteryReport)
				if !ok {
					t.Fatalf("type = %T", payload)
				}
				if p.Percent != 18.5 || p.RuntimeSeconds != 1200 {
					t.Errorf("report = %+v", p)
				}
			},
		},
		{
			name: "obstacle_report",
			data: `{"msg_type":"obstacle_report","sender":"amr-02","payload":{"obstacle_id":"h-1","class":"dynamic-human","x":5,"y":5,"radius":0.4,"vx":1.1}}`,
			check: func(t *testing.T, payload any) {
				p, ok := payload.(ObstacleReport)
				if !ok {
					t.Fatalf("type = %T", payload)
				}
				if p.Class != "dynamic-human" || p.VX != 1.1 {
					t.Errorf("report = %+v", p)
				}
			},
		},
		{
			name: "obstacle_expire",
			data: `{"msg_type":"obstacle_expire","sender":"amr-02","payload":{"obstacle_id":"h-1"}}`,
			check: func(t *testing.T, payload any) {
				if p, ok := payload.(ObstacleExpire); !ok || p.ObstacleID != "h-1" {
					t.Errorf("payload = %+v (%T)", payload, payload)
				}
			},
		},
		{
			name: "error_report",
			data: `{"msg_type":"error_report","sender":"amr-03","payload":{"robot_id":"amr-03","code":"E42","detail":"drive fault"}}`,
			check: func(t *testing.T, payload any) {
				if p, ok := payload.(ErrorReport); !ok || p.Code != "E42" {
					t.Errorf("payload = %+v (%T)", payload, payload)
				}
			},
		},
		{
			name: "mission_cancel",
			data: `{"msg_type":"mission_cancel","sender":"wms","payload":{"mission_id":"m-1","reason":"order voided"}}`,
			check: func(t *testing.T, payload any) {
				if p, ok := payload.(MissionCancel); !ok || p.MissionID != "m-1" {
					t.Errorf("payload = %+v (%T)", payload, payload)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, env.Payload)
		})
	}
}

func TestDecodeUnknownMsgType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"msg_type":"teleport_request","payload":{}}`))
	if err == nil {
		t.Fatal("unknown msg_type should fail")
	}
	if !strings.Contains(err.Error(), "unknown msg_type") {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("malformed envelope should fail")
	}
	if _, err := DecodeEnvelope([]byte(`{"msg_type":"position_report","payload":"not an object"}`)); err == nil {
		t.Error("malformed payload should fail")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := NewEnvelope("battery_report", "amr-01", BatteryReport{
		RobotID: "amr-01",
		Percent: 42.0,
	})
	if env.MsgID == "" {
		t.Error("new envelope should carry a msg_id")
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.MsgID != env.MsgID || back.Sender != "amr-01" {
		t.Errorf("round trip envelope = %+v", back)
	}
	p, ok := back.Payload.(BatteryReport)
	if !ok || p.Percent != 42.0 {
		t.Errorf("round trip payload = %+v (%T)", back.Payload, back.Payload)
	}
}

func TestCommandTopic(t *testing.T) {
	if got := CommandTopic("fleet/commands", "amr-01"); got != "fleet/commands/amr-01" {
		t.Errorf("topic = %q", got)
	}
}
