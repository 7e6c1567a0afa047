package payload

import (
	"encoding/json"
	"strconv"

	"github.com/copyleftdev/verdant/internal/optimization/routing"
	"github.com/copyleftdev/verdant/internal/optimization/segmentation"
)

// EmptySegmentation is the segmentation payload for degenerate input.
func EmptySegmentation() Document {
	return Document{Head: "[", Tail: "]"}
}

// Segmentation renders one object per record, in record order:
//
//	[{"x":10,"y":10,"cluster":"Bronze","churn":85.0},...]
func Segmentation(records []segmentation.Record) Document {
	items := make([]string, len(records))
	buf := make([]byte, 0, 64)
	for i, r := range records {
		buf = buf[:0]
		buf = append(buf, `{"x":`...)
		buf = strconv.AppendInt(buf, int64(r.X), 10)
		buf = append(buf, `,"y":`...)
		buf = strconv.AppendInt(buf, int64(r.Y), 10)
		buf = append(buf, `,"cluster":"`...)
		buf = append(buf, r.Tier.String()...)
		buf = append(buf, `","churn":`...)
		buf = strconv.AppendFloat(buf, r.Churn, 'f', 1, 64)
		buf = append(buf, '}')
		items[i] = string(buf)
	}
	return Document{Head: "[", Items: items, Tail: "]"}
}

// Route renders a route result:
//
//	{"total_distance":123.45,"iterations":3,"stops":[{"id":0,"x":50.0,"y":50.0,"type":"HUB"},...]}
func Route(res *routing.Result) Document {
	head := make([]byte, 0, 64)
	head = append(head, `{"total_distance":`...)
	head = strconv.AppendFloat(head, res.TotalDistance, 'f', 2, 64)
	head = append(head, `,"iterations":`...)
	head = strconv.AppendInt(head, int64(res.Passes), 10)
	head = append(head, `,"stops":[`...)

	items := make([]string, len(res.Stops))
	buf := make([]byte, 0, 64)
	for i, s := range res.Stops {
		buf = buf[:0]
		buf = append(buf, `{"id":`...)
		buf = strconv.AppendInt(buf, int64(s.ID), 10)
		buf = append(buf, `,"x":`...)
		buf = strconv.AppendFloat(buf, s.Position.X, 'f', 1, 64)
		buf = append(buf, `,"y":`...)
		buf = strconv.AppendFloat(buf, s.Position.Y, 'f', 1, 64)
		buf = append(buf, `,"type":"`...)
		buf = append(buf, s.Kind.String()...)
		buf = append(buf, `"}`...)
		items[i] = string(buf)
	}
	return Document{Head: string(head), Items: items, Tail: "]}"}
}

// Error renders {"error":"<message>"}.
func Error(err error) Document {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	quoted, mErr := json.Marshal(msg)
	if mErr != nil {
		quoted = []byte(`"unknown error"`)
	}
	return Document{Head: `{"error":` + string(quoted) + `}`}
}
