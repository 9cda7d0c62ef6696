package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/dialog"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// DialogService opens Direct Line Speech connections to a Bot Framework bot
type DialogService struct {
	credentials Credentials
	logger      *zap.Logger
}

var _ repositories.DialogService = (*DialogService)(nil)

// NewDialogService returns a connector factory for the configured bot
func NewDialogService(credentials Credentials, logger *zap.Logger) (*DialogService, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	if credentials.BotName == "" {
		return nil, errors.New("azure bot name is required")
	}
	return &DialogService{credentials: credentials, logger: logger}, nil
}

func (s *DialogService) NewConnector(_ context.Context, config repositories.DialogConfig, handler repositories.DialogHandler) (repositories.DialogConnector, error) {
	botConfig, err := dialog.NewBotFrameworkConfigFromSubscription(s.credentials.SubscriptionKey, s.credentials.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot framework config: %w", err)
	}

	if err := botConfig.SetProperty(common.ConversationApplicationID, s.credentials.BotName); err != nil {
		botConfig.Close()
		return nil, fmt.Errorf("failed to set bot name: %w", err)
	}
	if err := botConfig.SetLanguage(config.Language); err != nil {
		botConfig.Close()
		return nil, fmt.Errorf("failed to set dialog language: %w", err)
	}

	// turns are sent as text activities, this input only keeps the connector happy
	input, err := newPushInput(16000, 16, 1)
	if err != nil {
		botConfig.Close()
		return nil, err
	}

	connector, err := dialog.NewDialogServiceConnector(botConfig, input.config)
	if err != nil {
		input.close()
		botConfig.Close()
		return nil, fmt.Errorf("failed to create dialog connector: %w", err)
	}

	connector.ActivityReceived(func(e dialog.ActivityReceivedEventArgs) {
		defer e.Close()
		handler.OnActivityReceived(e.Activity)
	})
	connector.SessionStarted(func(e speech.SessionEventArgs) {
		defer e.Close()
		handler.OnSessionStarted()
	})
	connector.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		handler.OnSessionStopped()
	})
	connector.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		handler.OnCanceled(repositories.Cancellation{
			Reason: fmt.Sprint(e.Reason),
			Code:   fmt.Sprint(e.ErrorCode),
			Detail: e.ErrorDetails,
		})
	})

	s.logger.Debug("Created azure dialog connector",
		zap.String("sessionID", config.SessionID),
		zap.String("language", config.Language))

	return &azureConnector{
		config:    botConfig,
		input:     input,
		connector: connector,
	}, nil
}

type azureConnector struct {
	config    *dialog.BotFrameworkConfig
	input     *pushInput
	connector *dialog.DialogServiceConnector
}

func (c *azureConnector) Connect() error {
	return <-c.connector.ConnectAsync()
}

func (c *azureConnector) Disconnect() error {
	return <-c.connector.DisconnectAsync()
}

func (c *azureConnector) SendActivity(activity string) error {
	outcome := <-c.connector.SendActivityAsync(activity)
	return outcome.Error
}

func (c *azureConnector) Close() {
	c.connector.Close()
	c.input.close()
	c.config.Close()
}
