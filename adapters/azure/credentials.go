// Package azure binds the session engines to Azure Speech Services and
// Direct Line Speech.
package azure

import (
	"errors"
	"fmt"
	"os"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

// Credentials identify the speech resource and, for dialog, the bot
type Credentials struct {
	SubscriptionKey string
	Region          string
	BotName         string
}

// CredentialsFromEnv reads MSA_SPEECH_SERVICE_KEY, MSA_REGION and MSA_BOT_NAME
func CredentialsFromEnv() Credentials {
	return Credentials{
		SubscriptionKey: os.Getenv("MSA_SPEECH_SERVICE_KEY"),
		Region:          os.Getenv("MSA_REGION"),
		BotName:         os.Getenv("MSA_BOT_NAME"),
	}
}

// Validate checks the fields every Azure engine needs
func (c Credentials) Validate() error {
	if c.SubscriptionKey == "" {
		return errors.New("azure subscription key is required")
	}
	if c.Region == "" {
		return errors.New("azure region is required")
	}
	return nil
}

func (c Credentials) speechConfig() (*speech.SpeechConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	config, err := speech.NewSpeechConfigFromSubscription(c.SubscriptionKey, c.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure speech config: %w", err)
	}
	return config, nil
}

// pushInput is a PCM push stream with the audio config wrapping it
type pushInput struct {
	stream *audio.PushAudioInputStream
	config *audio.AudioConfig
}

func newPushInput(sampleRate, bitsPerSample, channels int) (*pushInput, error) {
	format, err := audio.GetWaveFormatPCM(uint32(sampleRate), uint8(bitsPerSample), uint8(channels))
	if err != nil {
		return nil, fmt.Errorf("could not create audio format: %w", err)
	}
	defer format.Close()

	stream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return nil, fmt.Errorf("could not create push stream: %w", err)
	}

	config, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("could not create audio config from push stream: %w", err)
	}

	return &pushInput{stream: stream, config: config}, nil
}

func (p *pushInput) close() {
	p.config.Close()
	p.stream.Close()
}
