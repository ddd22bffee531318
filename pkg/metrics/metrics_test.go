package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func gatherNames(reg *prometheus.Registry) map[string]bool {
	names := map[string]bool{}
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it uses the chirp namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.scoreBuckets, ShouldHaveLength, 11)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)

				manager.audioFrames.Inc()
				So(gatherNames(registry)["chirp_server_audio_frames_total"], ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("karaoke"),
				WithLatencyBuckets([]float64{1, 5, 10}),
				WithScoreBuckets([]float64{50, 100}),
				WithRefreshInterval(3*time.Second),
				WithRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				So(manager.latencyBuckets, ShouldResemble, []float64{1, 5, 10})
				So(manager.scoreBuckets, ShouldResemble, []float64{50, 100})

				manager.ttsCacheHits.Inc()
				So(gatherNames(registry)["test_karaoke_tts_cache_hits_total"], ShouldBeTrue)
			})
		})

		Convey("When options carry empty values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithLatencyBuckets(nil),
				WithScoreBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "chirp")
				So(manager.subsystem, ShouldEqual, "server")
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
				So(manager.latencyBuckets, ShouldHaveLength, 14)
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a listen session", func() {
			RecordListenSessionStart("en-US")
			RecordAudioFrame(3200)
			RecordAudioFrameDropped()
			RecordTranscriptEvent("final")
			RecordListenSessionEnd(2 * time.Second)

			Convey("Then the collectors are exported", func() {
				names := gatherNames(GetRegistry())
				So(names["chirp_server_listen_sessions_total"], ShouldBeTrue)
				So(names["chirp_server_audio_bytes_total"], ShouldBeTrue)
				So(names["chirp_server_audio_frames_dropped_total"], ShouldBeTrue)
				So(names["chirp_server_transcript_events_total"], ShouldBeTrue)
				So(names["chirp_server_listen_session_duration_seconds"], ShouldBeTrue)
			})
		})

		Convey("When recording the remaining collectors", func() {
			So(func() {
				RecordHTTPRequest("/api/status", "GET", "200")
				RecordHTTPRequestDuration("/api/status", "GET", "200", 1.5)
				RecordRecognizeLatency(120)
				RecordTTSRequest("en-US")
				RecordTTSCacheHit()
				RecordTTSCacheMiss()
				RecordTTSLatency(80)
				RecordTranslateRequest("es-ES")
				RecordScore("detailed", 87)
				RecordPhraseScore(64)
				RecordHighScoreSubmission("singing", "saved")
				RecordStoreLatency("submit", 0.4)
				UpdateQueueCapacity(256)
				UpdateQueueUtilization(0.5)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordErrorByComponent("speech", "recognize")
				RecordErrorByEndpoint("/api/translate", "POST", "backend")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then the score histogram counts observations", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				var count uint64
				for _, f := range families {
					if f.GetName() == "chirp_server_scores" {
						for _, m := range f.GetMetric() {
							count += m.GetHistogram().GetSampleCount()
						}
					}
				}
				So(count, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}
