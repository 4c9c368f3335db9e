package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry int
}

// Reader pulls events off a text/event-stream body.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the next event with data, or io.EOF once the body is done.
// Comment lines and data-less events are skipped.
func (r *Reader) Next() (*Event, error) {
	var ev Event
	var data []string
	hasData := false

	for {
		line, err := r.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		atEOF := err == io.EOF
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return &ev, nil
			}
			if atEOF {
				return nil, io.EOF
			}
			ev = Event{}
			continue
		}

		if !strings.HasPrefix(line, ":") {
			field, value := splitField(line)
			switch field {
			case "event":
				ev.Event = value
			case "data":
				data = append(data, value)
				hasData = true
			case "id":
				ev.ID = value
			case "retry":
				if n, err := strconv.Atoi(value); err == nil {
					ev.Retry = n
				}
			}
		}

		if atEOF {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return &ev, nil
			}
			return nil, io.EOF
		}
	}
}

func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	value := line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return line[:i], value
}

// IsDone reports the OpenAI style end marker.
func IsDone(ev *Event) bool {
	return bytes.Equal(bytes.TrimSpace([]byte(ev.Data)), []byte("[DONE]"))
}
