package scanner

//go:generate mockgen -source=../recognizer/recognizer.go -destination=mocks/recognizer.go -package=mocks Recognizer
//go:generate mockgen -source=../store/store.go -destination=mocks/store.go -package=mocks Store

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/metrics"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/PhiFever/idbadge-scanner/internal/recognizer"
	"github.com/PhiFever/idbadge-scanner/internal/scanner/mocks"
)

var badgeText = strings.Join([]string{
	"KANTOR OTORITAS BANDAR UDARA",
	"TERMINAL AREA 12 JAN 2025",
	"A B C",
	"JOHN DOE",
	"SECURITY OFFICER",
	"PT ANGKAS",
	"ID.NO.1234.5678",
}, "\n")

// cardPhoto is a light card with a dark band, so normalization has two classes
func cardPhoto() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 210, G: 205, B: 200, A: 255}
			if y > 10 && y < 15 {
				c = color.NRGBA{R: 20, G: 25, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

type PipelineSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	recognizer *mocks.MockRecognizer
	store      *mocks.MockStore
	metrics    *metrics.Metrics
	clock      time.Time
	pipeline   *Pipeline
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.recognizer = mocks.NewMockRecognizer(s.ctrl)
	s.store = mocks.NewMockStore(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.clock = time.Date(2025, 1, 12, 10, 30, 0, 0, time.Local)
	s.pipeline = NewPipeline(s.recognizer,
		WithStore(s.store),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.clock }),
	)
}

func (s *PipelineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PipelineSuite) outcomeCount(result, source string) float64 {
	return testutil.ToFloat64(s.metrics.ScanOutcome.WithLabelValues(result, source))
}

func (s *PipelineSuite) TestProcessProducesRecord() {
	ctx := context.Background()
	s.recognizer.EXPECT().
		Recognize(gomock.Any(), gomock.Any(), recognizer.DefaultOptions()).
		DoAndReturn(func(_ context.Context, img image.Image, _ recognizer.Options) (string, error) {
			s.Equal(image.Rect(0, 0, 40, 30), img.Bounds())
			return badgeText, nil
		})

	var saved models.IdentityRecord
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec models.IdentityRecord) error {
			saved = rec
			return nil
		})

	rec, err := s.pipeline.Process(ctx, cardPhoto(), "Area Kargo", SourceUpload)
	s.Require().NoError(err)

	s.Equal("JOHN DOE", rec.Name)
	s.Equal("SECURITY OFFICER", rec.Position)
	s.Equal("PT ANGKASA PURA", rec.Company)
	s.Equal("ID.NO.1234.5678", rec.IDNumber)
	s.Equal("12 JAN 2025", rec.ExpiryDate)
	s.Equal([]string{"A", "B", "C"}, rec.AccessAreas)
	s.Equal("Area Kargo", rec.ScanArea)
	s.Equal(s.clock.UnixMilli(), rec.ScanTimestamp)
	s.Equal(rec, saved)
	s.Equal(1.0, s.outcomeCount("ok", SourceUpload))
}

func (s *PipelineSuite) TestProcessWithoutAreaDoesNothing() {
	_, err := s.pipeline.Process(context.Background(), cardPhoto(), "", SourceLive)
	s.ErrorIs(err, ErrNoScanArea)

	_, err = s.pipeline.ProcessReader(context.Background(), strings.NewReader("junk"), "", SourceUpload)
	s.ErrorIs(err, ErrNoScanArea)
	s.Equal(1.0, s.outcomeCount("no_area", SourceUpload))

	// refused before the file is touched
	_, err = s.pipeline.ProcessFile(context.Background(), s.T().TempDir()+"/missing.png", "", SourceWatch)
	s.ErrorIs(err, ErrNoScanArea)
	s.Equal(1.0, s.outcomeCount("no_area", SourceWatch))
	s.Equal(0.0, s.outcomeCount("image_access", SourceWatch))
}

func (s *PipelineSuite) TestRecognitionErrorsAbort() {
	for _, want := range []error{recognizer.ErrEmptyResult, recognizer.ErrUnavailable} {
		s.recognizer.EXPECT().Recognize(gomock.Any(), gomock.Any(), gomock.Any()).Return("", want)

		_, err := s.pipeline.Process(context.Background(), cardPhoto(), "Area Kargo", SourceLive)
		s.ErrorIs(err, want)
	}
	s.Equal(1.0, s.outcomeCount("empty", SourceLive))
	s.Equal(1.0, s.outcomeCount("unavailable", SourceLive))
}

func (s *PipelineSuite) TestIncompleteExtraction() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("JOHN DOE\nSTAFF\nPT ANGKASA PURA", nil)

	_, err := s.pipeline.Process(context.Background(), cardPhoto(), "Area Kargo", SourceLive)

	var incomplete *IncompleteExtractionError
	s.Require().ErrorAs(err, &incomplete)
	s.Equal([]string{"idNumber"}, incomplete.Missing)
	s.Equal("JOHN DOE", incomplete.Result.Name.Value)
	s.Contains(err.Error(), "idNumber")
}

func (s *PipelineSuite) TestConcurrentRunIsRefused() {
	s.pipeline.mu.Lock()
	defer s.pipeline.mu.Unlock()

	_, err := s.pipeline.Process(context.Background(), cardPhoto(), "Area Kargo", SourceUpload)
	s.ErrorIs(err, ErrBusy)
}

func (s *PipelineSuite) TestSaveFailureIsReported() {
	boom := errors.New("disk full")
	s.recognizer.EXPECT().Recognize(gomock.Any(), gomock.Any(), gomock.Any()).Return(badgeText, nil)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(boom)

	_, err := s.pipeline.Process(context.Background(), cardPhoto(), "Area Kargo", SourceUpload)
	s.ErrorIs(err, boom)
}

func (s *PipelineSuite) TestProcessReader() {
	data, err := imageproc.EncodePNG(cardPhoto())
	s.Require().NoError(err)

	s.recognizer.EXPECT().Recognize(gomock.Any(), gomock.Any(), gomock.Any()).Return(badgeText, nil)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := s.pipeline.ProcessReader(context.Background(), bytes.NewReader(data), "Area Kargo", SourceUpload)
	s.Require().NoError(err)
	s.Equal("JOHN DOE", rec.Name)

	_, err = s.pipeline.ProcessReader(context.Background(), strings.NewReader("not an image"), "Area Kargo", SourceUpload)
	s.ErrorIs(err, imageproc.ErrImageDecode)
	s.Equal(1.0, s.outcomeCount("decode", SourceUpload))
}

func (s *PipelineSuite) TestProcessFileMissing() {
	_, err := s.pipeline.ProcessFile(context.Background(), s.T().TempDir()+"/missing.png", "Area Kargo", SourceCLI)
	s.ErrorIs(err, imageproc.ErrImageAccess)
}

func (s *PipelineSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.pipeline.Process(ctx, cardPhoto(), "Area Kargo", SourceLive)
	s.ErrorIs(err, context.Canceled)
}

func (s *PipelineSuite) TestMaxDimensionDownscales() {
	p := NewPipeline(s.recognizer, WithMaxDimension(20))
	s.recognizer.EXPECT().
		Recognize(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, img image.Image, _ recognizer.Options) (string, error) {
			s.Equal(20, img.Bounds().Dx())
			return badgeText, nil
		})

	_, err := p.Process(context.Background(), cardPhoto(), "Area Kargo", SourceCLI)
	s.NoError(err)
}

func (s *PipelineSuite) TestNilRecognizer() {
	p := NewPipeline(nil)
	_, err := p.Process(context.Background(), cardPhoto(), "Area Kargo", SourceCLI)
	s.ErrorIs(err, recognizer.ErrUnavailable)
}

func (s *PipelineSuite) TestUserMessage() {
	cases := map[error]string{
		nil:                                 "Scan successful.",
		ErrNoScanArea:                       "Please select a scan area first.",
		ErrBusy:                             "A scan is already being processed, please wait.",
		imageproc.ErrImageDecode:            "The image could not be read. Use a JPG, PNG or WEBP photo.",
		imageproc.ErrImageAccess:            "The image could not be processed.",
		recognizer.ErrUnavailable:           "Text recognition is not available.",
		recognizer.ErrEmptyResult:           "No text found on the card. Try again with better lighting.",
		&IncompleteExtractionError{}:        "Failed to read the name or ID number. Hold the card steady and try again.",
		context.Canceled:                    "The scan was cancelled.",
		errors.New("something else broke"): "The scan failed. Please try again.",
	}
	for err, want := range cases {
		s.Equal(want, UserMessage(err), "error %v", err)
	}
}
