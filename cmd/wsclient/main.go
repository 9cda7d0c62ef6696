// Command wsclient plays a WAV file into the connector the way a telephony
// platform would and saves the audio it sends back as raw PCM.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/youpy/go-wav"
)

const (
	sampleRate      = 16000
	samplesPerFrame = 320 // 20 ms
	frameInterval   = 20 * time.Millisecond
)

func main() {
	serverURL := flag.String("url", "ws://localhost:6000/socket?original_uuid=wsclient&language_code=en-US", "connector socket URL")
	wavPath := flag.String("wav", "", "16 kHz mono 16-bit WAV file to stream")
	outPath := flag.String("out", "reply.pcm", "file receiving the returned PCM audio")
	linger := flag.Duration("linger", 10*time.Second, "how long to keep listening after the file ends")
	flag.Parse()

	if *wavPath == "" {
		log.Fatal("-wav is required")
	}

	file, err := os.Open(*wavPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *wavPath, err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if format.SampleRate != sampleRate || format.NumChannels != 1 || format.BitsPerSample != 16 {
		log.Printf("Warning: %s is %d Hz, %d channel(s), %d bit; the connector expects 16000 Hz mono 16 bit",
			*wavPath, format.SampleRate, format.NumChannels, format.BitsPerSample)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outPath, err)
	}
	defer out.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverURL)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"websocket:connected","content-type":"audio/l16;rate=16000"}`)); err != nil {
		log.Fatalf("Failed to send settings: %v", err)
	}

	received := make(chan struct{})
	go func() {
		defer close(received)
		var frames, bytes int
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				fmt.Printf("Received %d frames (%d bytes) into %s\n", frames, bytes, *outPath)
				return
			}
			if messageType != websocket.BinaryMessage {
				fmt.Printf("Text message: %s\n", payload)
				continue
			}
			if _, err := out.Write(payload); err != nil {
				log.Printf("Failed to save audio: %v", err)
				return
			}
			frames++
			bytes += len(payload)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	sent, err := stream(conn, reader, interrupt)
	if err != nil {
		log.Printf("Streaming stopped: %v", err)
	}
	fmt.Printf("Sent %d frames, listening for %s\n", sent, *linger)

	select {
	case <-time.After(*linger):
	case <-interrupt:
	case <-received:
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	select {
	case <-received:
	case <-time.After(time.Second):
	}
}

// stream sends one 640 byte frame per tick until the file ends
func stream(conn *websocket.Conn, reader *wav.Reader, interrupt <-chan os.Signal) (int, error) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	frame := make([]byte, samplesPerFrame*2)
	sent := 0
	for {
		select {
		case <-interrupt:
			return sent, nil
		case <-ticker.C:
		}

		samples, err := reader.ReadSamples(samplesPerFrame)
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}

		clear(frame)
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(int16(sample.Values[0])))
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return sent, err
		}
		sent++
	}
}
