package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"interview-proctor/internal/client"
	"interview-proctor/internal/config"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/proctor"
	"interview-proctor/internal/session"
	"interview-proctor/internal/speech"
	"interview-proctor/internal/timer"
)

// run проводит одно интервью: ввод кандидата читается из in, ход интервью пишется в out
func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	log, err := logger.New(logger.Config{Level: opts.logLevel, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	api, err := client.New(opts.serverURL, opts.timeout)
	if err != nil {
		return err
	}

	ui := newConsole(out)
	ctrl := session.New(api, session.Options{
		ClosingMessage:     cfg.Messages.Closing,
		SubmitErrorMessage: cfg.Messages.SubmitError,
		FinishDelay:        cfg.Client.FinishDelay,
		ResultAttempts:     cfg.Client.ResultAttempts,
		ResultInterval:     cfg.Client.ResultInterval,
		Logger:             log,
	})
	defer ctrl.Close()

	// надиктованный или набранный текст копится в транскрибере до отправки
	pr, pw := io.Pipe()
	transcriber := speech.NewLineTranscriber(pr, cfg.Client.SilenceTimeout)

	submit := func(ctx context.Context, text string) error {
		if err := ctrl.SubmitAnswer(ctx, text); err != nil {
			return err
		}
		transcriber.Clear()
		return nil
	}

	rt := timer.New(cfg.Client.AnswerTimeLimit, submit, transcriber.Text, log)
	rt.OnTick(ui.Tick)

	guard := proctor.New(ctrl, ui, log)
	guard.OnFullscreenChange(rt.SetFullscreen)

	speaker := speech.NewSpeaker(api, commandPlayer(opts.player), commandVoice(opts.voice), log)
	speaker.OnStart(rt.SpeechStarted)
	speaker.OnEnd(rt.SpeechFinished)

	done := make(chan struct{})
	var doneOnce sync.Once
	finish := func() { doneOnce.Do(func() { close(done) }) }

	ctrl.Subscribe(ui.Render)
	ctrl.Subscribe(rt.HandleEvent)
	ctrl.Subscribe(guard.HandleEvent)
	ctrl.Subscribe(func(ev session.Event) {
		switch {
		case ev.Type == session.EventPrompt:
			transcriber.Clear()
			go speech.Drain(speaker.Speak(ctx, ev.State.Prompt), nil)
		case ev.Type == session.EventResult:
			finish()
		case ev.Type == session.EventStatus && ev.State.Status == session.StatusFinished:
			// отчет может так и не прийти: выходим, когда опрос закончится
			go func() {
				ctrl.Wait()
				finish()
			}()
		case ev.Type == session.EventStatus && ev.State.Status == session.StatusTerminated:
			speaker.Stop()
			finish()
		}
	})

	signals := make(chan proctor.Signal, 8)
	go guard.Run(ctx, signals)
	go rt.Run(ctx, time.Second)

	go func() {
		for {
			onSilence := func() {}
			if opts.handsFree {
				onSilence = func() {
					if err := submit(ctx, transcriber.Text()); err != nil && !errors.Is(err, session.ErrEmptyAnswer) {
						log.Warn("hands-free submit failed", zap.Error(err))
					}
				}
			}
			if err := transcriber.Transcribe(ctx, nil, onSilence); err != nil {
				return
			}
		}
	}()

	start := func() {
		err := ctrl.Start(ctx, opts.candidateID)
		if errors.Is(err, session.ErrInterviewClosed) {
			ui.printf("⛔ Интервью для кандидата %s уже пройдено или прервано\n", opts.candidateID)
			finish()
		}
	}
	sendTyped := func() {
		if err := submit(ctx, transcriber.Text()); err != nil {
			switch {
			case errors.Is(err, session.ErrEmptyAnswer):
				ui.printf("✍️ Сначала напишите ответ\n")
			case errors.Is(err, session.ErrSubmissionInFlight), errors.Is(err, session.ErrNotActive):
			default:
				log.Warn("submit failed", zap.Error(err))
			}
		}
	}

	go func() {
		defer pw.Close()
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			a := parseLine(scanner.Text())
			switch a.kind {
			case actionText:
				if a.text == "" {
					if !opts.handsFree {
						go sendTyped()
					}
					continue
				}
				if _, err := fmt.Fprintln(pw, a.text); err != nil {
					return
				}
			case actionSignal:
				select {
				case signals <- a.signal:
				case <-ctx.Done():
					return
				}
			case actionSend:
				go sendTyped()
			case actionRetry:
				if err := ctrl.Reset(); err == nil {
					go start()
				}
			case actionQuit:
				cancel()
				return
			default:
				ui.printf("❓ Неизвестная команда %s\n", a.text)
			}
		}
	}()

	fmt.Fprintf(out, "🚀 Подключение к %s...\n", opts.serverURL)
	go start()

	select {
	case <-done:
	case <-ctx.Done():
	}
	speaker.Stop()

	if st := ctrl.Snapshot(); st.Status == session.StatusTerminated {
		return fmt.Errorf("интервью прервано: %s", st.TerminationReason)
	}
	return nil
}

func commandPlayer(command string) speech.Player {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return speech.NewCommandPlayer(fields[0], fields[1:]...)
}

func commandVoice(command string) speech.Voice {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return speech.NewCommandVoice(fields[0], fields[1:]...)
}
