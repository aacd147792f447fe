// Package pipeline drives the per-endpoint processing workflows: probe,
// plan, encode, finalize, and roll back artifacts on failure. Each job is
// owned by exactly one workflow goroutine; the job store is the only
// shared state it touches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/google/shlex"

	"vidpress/config"
	"vidpress/ffmpeg"
	"vidpress/job"
	"vidpress/naming"
	"vidpress/plan"
	"vidpress/storage"
)

// ErrOutputMissing marks a zero exit with no file materialized; treated
// the same as a failed encode.
var ErrOutputMissing = errors.New("encoder exited cleanly but produced no output file")

// Prober is the metadata-extraction collaborator.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.Info, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// Encoder is the external encoding collaborator.
type Encoder interface {
	Run(ctx context.Context, args []string, duration float64, w ffmpeg.Window, onTick func(ffmpeg.Progress)) error
}

// Input describes one accepted upload.
type Input struct {
	Path         string // stored path under the input dir
	OriginalName string // user-supplied filename, display only
	Size         int64
}

type Orchestrator struct {
	cfg       *config.Config
	jobs      *job.Store
	files     *storage.Manager
	prober    Prober
	encoder   Encoder
	extraArgs []string
}

func New(cfg *config.Config, jobs *job.Store, files *storage.Manager, prober Prober, encoder Encoder) (*Orchestrator, error) {
	var extra []string
	if cfg.FFExtraArgs != "" {
		args, err := shlex.Split(cfg.FFExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
		}
		extra = args
	}
	return &Orchestrator{
		cfg:       cfg,
		jobs:      jobs,
		files:     files,
		prober:    prober,
		encoder:   encoder,
		extraArgs: extra,
	}, nil
}

// CompressToSize is the compress-by-target-size workflow. The caller has
// already created the job and sent its id to the client; from here on all
// outcomes are reported through the job store.
func (o *Orchestrator) CompressToSize(ctx context.Context, jobID string, in Input, targetMB float64) {
	outputName := naming.OutputName(in.OriginalName, "compressed") + ".mp4"
	outputPath := o.files.OutputPath(outputName)

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusAnalyzing, Progress: job.Progress(10),
		Message: "Анализируем видео", Stage: "Анализ видео",
	})

	duration, err := o.prober.Duration(ctx, in.Path)
	if err != nil {
		o.fail(jobID, "Ошибка анализа видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusCalculating, Progress: job.Progress(15),
		Message: "Расчет параметров", Stage: "Подготовка обработки",
	})

	bitrate, err := plan.ForTargetSize(targetMB, duration)
	if err != nil {
		o.fail(jobID, "Ошибка расчета параметров", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusProcessing, Progress: job.Progress(20),
		Message: "Начинаем сжатие видео", Stage: "Сжатие видео",
	})

	err = o.encode(ctx, sizeArgs(in.Path, bitrate, o.cfg.FFPreset), outputPath, duration, ffmpeg.SinglePass,
		o.tick(jobID, "Обработано %d%%", "Сжатие видео"))
	if err != nil {
		o.fail(jobID, "Ошибка обработки видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusFinalizing, Progress: job.Progress(95),
		Message: "Завершаем обработку", Stage: "Финальная обработка",
	})

	outSize, err := fileSize(outputPath)
	if err != nil {
		o.fail(jobID, "Ошибка обработки видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusCompleted, Progress: job.Progress(100),
		Message: "Обработка завершена!", Stage: "Готово",
		Result: &job.Result{
			Success:          true,
			OriginalFile:     in.OriginalName,
			ProcessedFile:    outputName,
			DownloadURL:      downloadURL(outputName),
			OriginalSize:     in.Size,
			CompressedSize:   outSize,
			CompressionRatio: compressionRatio(in.Size, outSize),
		},
	})
}

// PercentOutcome is the synchronous compress-by-percent response payload.
type PercentOutcome struct {
	OriginalFile     string
	ProcessedFile    string
	DownloadURL      string
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio string
	TargetPercent    string
}

// CompressByPercent runs to completion before returning; unlike the other
// workflows there is no job record and the HTTP response carries the final
// result.
func (o *Orchestrator) CompressByPercent(ctx context.Context, in Input, percent int) (*PercentOutcome, error) {
	safePercent := plan.ClampPercent(percent)
	outputName := naming.OutputName(in.OriginalName, "compressed") + ".mp4"
	outputPath := o.files.OutputPath(outputName)

	info, err := o.prober.Probe(ctx, in.Path)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	var args []string
	if info.Video != nil && info.Video.Bitrate > 0 {
		bitrate := plan.ForPercent(safePercent, info.Video.Bitrate)
		log.Printf("compress %d%%: %d -> %d bit/s", safePercent, info.Video.Bitrate, bitrate)
		args = percentArgs(in.Path, bitrate, o.cfg.FFPreset)
	} else {
		// Source bitrate unknown: constant-quality fallback.
		crf := plan.CRFForPercent(safePercent)
		log.Printf("compress %d%%: source bitrate unknown, CRF %d", safePercent, crf)
		args = crfArgs(in.Path, crf, o.cfg.FFPreset)
	}

	err = o.encode(ctx, args, outputPath, info.Duration, ffmpeg.SinglePass, func(p ffmpeg.Progress) {
		log.Printf("compress progress: %s", p.Clock)
	})
	if err != nil {
		return nil, err
	}

	outSize, err := fileSize(outputPath)
	if err != nil {
		return nil, err
	}

	return &PercentOutcome{
		OriginalFile:     in.OriginalName,
		ProcessedFile:    outputName,
		DownloadURL:      downloadURL(outputName),
		OriginalSize:     in.Size,
		CompressedSize:   outSize,
		CompressionRatio: compressionRatio(in.Size, outSize),
		TargetPercent:    fmt.Sprintf("%d%%", safePercent),
	}, nil
}

// Convert is the format-conversion workflow: remux when the container pair
// allows it, otherwise re-encode preserving the source bitrate.
func (o *Orchestrator) Convert(ctx context.Context, jobID string, in Input, format, quality string) {
	format = strings.ToLower(format)
	outputName := naming.OutputName(in.OriginalName, "converted") + "." + format
	outputPath := o.files.OutputPath(outputName)
	inputExt := storage.InputExt(in.OriginalName)

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusAnalyzing, Progress: job.Progress(10),
		Message: "Анализируем видео", Stage: "Анализ видео",
	})

	// Conversion survives an unknown duration; progress just stays at the
	// window floor and the bitrate falls back to 1 Mbps.
	duration, err := o.prober.Duration(ctx, in.Path)
	if err != nil {
		log.Printf("[%s] duration probe failed: %v", shortID(jobID), err)
		duration = 0
	}
	sourceBitrate := 1000000
	if duration > 0 {
		sourceBitrate = int(float64(in.Size) * 8 / duration)
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusProcessing, Progress: job.Progress(30),
		Message: "Конвертация...", Stage: "Конвертация в " + strings.ToUpper(format),
	})

	args := convertArgs(in.Path, inputExt, format, quality, sourceBitrate)
	err = o.encode(ctx, args, outputPath, duration, ffmpeg.SinglePass,
		o.tick(jobID, "Конвертация: %d%%", "Конвертация в "+strings.ToUpper(format)))
	if err != nil {
		o.fail(jobID, "Ошибка конвертации видео", err)
		return
	}

	outSize, err := fileSize(outputPath)
	if err != nil {
		o.fail(jobID, "Ошибка конвертации видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusCompleted, Progress: job.Progress(100),
		Message: "Конвертация завершена!", Stage: "Готово",
		Result: &job.Result{
			Success:          true,
			OriginalFile:     in.OriginalName,
			ProcessedFile:    outputName,
			DownloadURL:      downloadURL(outputName),
			OriginalSize:     in.Size,
			CompressedSize:   outSize,
			Format:           strings.ToUpper(format),
			QualityPreserved: true,
			BitratePreserved: fmt.Sprintf("%d kbps", sourceBitrate/1000),
			SizeRatio:        sizeRatio(in.Size, outSize),
		},
	})
}

// CompressConvert squeezes into an intermediate mp4, then repackages it
// into the final format. The intermediate never outlives the workflow.
func (o *Orchestrator) CompressConvert(ctx context.Context, jobID string, in Input, format string, targetMB float64, quality string) {
	format = strings.ToLower(format)
	outputName := naming.OutputName(in.OriginalName, "processed") + "." + format
	outputPath := o.files.OutputPath(outputName)
	tempPath := o.files.OutputPath(naming.TempName(".mp4"))

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusAnalyzing, Progress: job.Progress(10),
		Message: "Анализируем видео", Stage: "Анализ видео",
	})

	duration, err := o.prober.Duration(ctx, in.Path)
	if err != nil {
		o.fail(jobID, "Ошибка анализа видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusCalculating, Progress: job.Progress(15),
		Message: "Расчет параметров", Stage: "Подготовка обработки",
	})

	bitrate, err := plan.ForSizeAndFormat(targetMB, duration)
	if err != nil {
		o.fail(jobID, "Ошибка расчета параметров", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusProcessing, Progress: job.Progress(20),
		Message: "Сжатие видео...", Stage: "Сжатие",
	})

	crf := qualityCRFForCompress(quality)
	err = o.encode(ctx, compressPhaseArgs(in.Path, bitrate, crf, o.cfg.FFPreset), tempPath, duration, ffmpeg.CompressPhase,
		o.tick(jobID, "Сжатие: %d%%", "Сжатие"))
	if err != nil {
		o.fail(jobID, "Ошибка сжатия видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Progress: job.Progress(70),
		Message:  "Конвертация видео...", Stage: "Конвертация в " + strings.ToUpper(format),
	})

	if format == "mp4" {
		// Same container as the intermediate: a rename is the whole phase.
		if err := os.Rename(tempPath, outputPath); err != nil {
			o.files.ScheduleRemoval(tempPath, 0)
			o.fail(jobID, "Ошибка конвертации видео", err)
			return
		}
	} else {
		err = o.encode(ctx, convertPhaseArgs(tempPath, format), outputPath, duration, ffmpeg.ConvertPhase,
			o.tick(jobID, "Конвертация: %d%%", "Конвертация в "+strings.ToUpper(format)))
		o.files.ScheduleRemoval(tempPath, 0)
		if err != nil {
			o.fail(jobID, "Ошибка конвертации видео", err)
			return
		}
	}

	outSize, err := fileSize(outputPath)
	if err != nil {
		o.fail(jobID, "Ошибка обработки видео", err)
		return
	}

	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusCompleted, Progress: job.Progress(100),
		Message: "Обработка завершена!", Stage: "Готово",
		Result: &job.Result{
			Success:          true,
			OriginalFile:     in.OriginalName,
			ProcessedFile:    outputName,
			DownloadURL:      downloadURL(outputName),
			OriginalSize:     in.Size,
			CompressedSize:   outSize,
			CompressionRatio: compressionRatio(in.Size, outSize),
			TargetSize:       fmt.Sprintf("%.0f MB", targetMB),
			AchievedSize:     fmt.Sprintf("%.2f MB", float64(outSize)/(1024*1024)),
			Format:           strings.ToUpper(format),
		},
	})
}

// encode runs one encoder pass with the configured extra args and the
// watchdog timeout, verifies the output file exists, and removes any
// partial output on failure.
func (o *Orchestrator) encode(ctx context.Context, args []string, output string, duration float64, w ffmpeg.Window, onTick func(ffmpeg.Progress)) error {
	full := make([]string, 0, len(args)+len(o.extraArgs)+2)
	full = append(full, args...)
	full = append(full, o.extraArgs...)
	full = append(full, "-y", output)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.EncodeTimeout)
	defer cancel()

	if err := o.encoder.Run(ctx, full, duration, w, onTick); err != nil {
		o.files.ScheduleRemoval(output, 0)
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return ErrOutputMissing
	}
	return nil
}

// tick adapts parsed encoder progress into a job store update. All ticks
// for a pass are applied before the workflow's own final update because
// the encoder delivers them on the workflow goroutine's call.
func (o *Orchestrator) tick(jobID, msgFormat, stage string) func(ffmpeg.Progress) {
	return func(p ffmpeg.Progress) {
		o.jobs.Apply(jobID, job.Update{
			Progress:  job.Progress(p.Percent),
			Message:   fmt.Sprintf(msgFormat, p.Percent),
			Stage:     stage,
			Time:      p.Clock,
			Remaining: p.Remaining,
			Speed:     p.Speed,
		})
	}
}

// fail moves the job to its terminal error state. Raw tool diagnostics go
// to the log only; the client sees the generic message.
func (o *Orchestrator) fail(jobID, msg string, err error) {
	log.Printf("[%s] workflow failed: %v", shortID(jobID), err)
	o.jobs.Apply(jobID, job.Update{
		Status: job.StatusError, Message: msg, Stage: "Ошибка",
	})
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	return info.Size(), nil
}

func downloadURL(filename string) string {
	return "/api/download/" + url.PathEscape(filename)
}

func compressionRatio(origSize, outSize int64) string {
	if origSize <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", (1-float64(outSize)/float64(origSize))*100)
}

func sizeRatio(origSize, outSize int64) string {
	if origSize <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(outSize)/float64(origSize)*100)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
