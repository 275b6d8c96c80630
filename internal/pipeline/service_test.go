package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"stillframe/internal/config"
	"stillframe/internal/intake"
	"stillframe/internal/locale"
	"stillframe/internal/pipeline"
	"stillframe/internal/render"
	"stillframe/internal/store"
	"stillframe/internal/testsupport"
	"stillframe/internal/workdir"
)

type sentMessage struct {
	userID int64
	msg    pipeline.Message
}

type delivery struct {
	userID  int64
	path    string
	caption pipeline.Message
	existed bool
}

type fakeTransport struct {
	mu         sync.Mutex
	messages   []sentMessage
	deliveries []delivery
	deliverErr error
	fetchErr   error
}

func (f *fakeTransport) Emit(_ context.Context, userID int64, msg pipeline.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{userID: userID, msg: msg})
	return nil
}

func (f *fakeTransport) DeliverVideo(_ context.Context, userID int64, path string, caption pipeline.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{userID: userID, path: path, caption: caption, existed: workdir.Exists(path)})
	return f.deliverErr
}

func (f *fakeTransport) Fetch(_ context.Context, _ intake.Attachment, dest string) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	return os.WriteFile(dest, []byte("payload"), 0o644)
}

func (f *fakeTransport) keys() []locale.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]locale.Key, 0, len(f.messages))
	for _, m := range f.messages {
		keys = append(keys, m.msg.Key)
	}
	return keys
}

type fakeRenderer struct {
	mu    sync.Mutex
	work  *workdir.Dir
	size  int64
	fail  bool
	calls []render.Job
}

func (f *fakeRenderer) Render(_ context.Context, job render.Job) render.Result {
	f.mu.Lock()
	f.calls = append(f.calls, job)
	f.mu.Unlock()
	if f.fail {
		return render.Result{Failure: &render.Failure{ExitCode: 1, Diagnostic: "boom"}}
	}
	out := f.work.OutputPath()
	if err := os.WriteFile(out, []byte("video"), 0o644); err != nil {
		return render.Result{Failure: &render.Failure{Err: err}}
	}
	size := f.size
	if size == 0 {
		size = 5
	}
	return render.Result{OutputPath: out, SizeBytes: size}
}

type harness struct {
	cfg       *config.Config
	store     *store.Store
	work      *workdir.Dir
	transport *fakeTransport
	renderer  *fakeRenderer
	service   *pipeline.Service
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	work, err := workdir.New(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("workdir.New: %v", err)
	}
	transport := &fakeTransport{}
	renderer := &fakeRenderer{work: work}
	svc, err := pipeline.NewService(pipeline.Options{
		Settings:        st.Settings(),
		Sessions:        st.Sessions(),
		Renderer:        renderer,
		Transport:       transport,
		WorkDir:         work,
		MaxOutputBytes:  cfg.MaxOutputBytes(),
		DefaultLanguage: cfg.DefaultLanguage(),
		OrphanMaxAge:    cfg.OrphanMaxAge(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{cfg: cfg, store: st, work: work, transport: transport, renderer: renderer, service: svc}
}

func (h *harness) workFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.work.Root())
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func mp3(userID int64) intake.Attachment {
	return intake.Attachment{UserID: userID, Kind: intake.KindDocument, FileName: "track.mp3", MIME: "audio/mpeg", FileID: "a"}
}

func photo(userID int64) intake.Attachment {
	return intake.Attachment{UserID: userID, Kind: intake.KindPhoto, FileID: "p"}
}

func equalKeys(got, want []locale.Key) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := pipeline.NewService(pipeline.Options{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartLanguageChoiceThenHelp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.service.HandleStart(ctx, 1); err != nil {
		t.Fatalf("HandleStart: %v", err)
	}
	msgs := h.transport.messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", msgs)
	}
	if msgs[0].msg.Key != locale.KeyStartChooseLang || !msgs[0].msg.AllLanguages {
		t.Fatalf("expected bilingual language prompt, got %+v", msgs[0].msg)
	}
	if !msgs[1].msg.LanguageChoice {
		t.Fatalf("expected language keyboard, got %+v", msgs[1].msg)
	}

	ack, err := h.service.HandleLanguageSelection(ctx, 1, "EN")
	if err != nil {
		t.Fatalf("HandleLanguageSelection: %v", err)
	}
	if ack.Key != locale.KeyLanguageSaved || ack.Alert {
		t.Fatalf("unexpected ack %+v", ack)
	}
	lang, found, err := h.store.Settings().Get(ctx, 1)
	if err != nil || !found || lang != locale.EN {
		t.Fatalf("expected EN stored, got %q found=%v err=%v", lang, found, err)
	}

	h.transport.messages = nil
	if err := h.service.HandleHelp(ctx, 1); err != nil {
		t.Fatalf("HandleHelp: %v", err)
	}
	if len(h.transport.messages) != 1 {
		t.Fatalf("expected one help message, got %+v", h.transport.messages)
	}
	help := h.transport.messages[0].msg
	if help.Key != locale.KeyHelpText || help.Lang != locale.EN {
		t.Fatalf("expected English help, got %+v", help)
	}
	text := locale.Default().Text(help.Lang, help.Key, help.Vars)
	if text != locale.Default().Text(locale.EN, locale.KeyHelpText, nil) {
		t.Fatalf("unexpected help text %q", text)
	}
}

func TestStartWithLanguageSendsInstructions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.Settings().Set(ctx, 2, locale.EN); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.service.HandleStart(ctx, 2); err != nil {
		t.Fatalf("HandleStart: %v", err)
	}
	want := []locale.Key{locale.KeyStartReady, locale.KeyHelpText}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestLanguageSelectionUnknownLanguage(t *testing.T) {
	h := newHarness(t)
	ack, err := h.service.HandleLanguageSelection(context.Background(), 3, "XX")
	if err != nil {
		t.Fatalf("HandleLanguageSelection: %v", err)
	}
	if ack.Key != locale.KeyUnknownLanguage || !ack.Alert {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if _, found, _ := h.store.Settings().Get(context.Background(), 3); found {
		t.Fatal("unknown language must not be stored")
	}
	if len(h.transport.messages) != 0 {
		t.Fatalf("expected no follow-up messages, got %+v", h.transport.messages)
	}
}

func TestLanguageSelectionTutorial(t *testing.T) {
	h := newHarness(t)
	if _, err := h.service.HandleLanguageSelection(context.Background(), 4, "RU"); err != nil {
		t.Fatalf("HandleLanguageSelection: %v", err)
	}
	want := []locale.Key{locale.KeyTutorialAfterLang, locale.KeyStartReady, locale.KeyHelpText}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTextReplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.service.HandleText(ctx, 5); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	want := []locale.Key{locale.KeyStartChooseLang, locale.KeyChooseLangPrompt}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("without language: got %v want %v", got, want)
	}

	h.transport.messages = nil
	if err := h.store.Settings().Set(ctx, 5, locale.RU); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.service.HandleText(ctx, 5); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	want = []locale.Key{locale.KeyHelpText}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("with language: got %v want %v", got, want)
	}
	reply := h.transport.messages[0].msg
	if len(reply.Append) != 1 || reply.Append[0] != locale.KeyChangeLangHint || reply.Lang != locale.RU {
		t.Fatalf("expected help and language hint in one reply, got %+v", reply)
	}
}

func TestLanguagePromptUsesStoredLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.Settings().Set(ctx, 6, locale.EN); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.service.HandleLanguagePrompt(ctx, 6); err != nil {
		t.Fatalf("HandleLanguagePrompt: %v", err)
	}
	msg := h.transport.messages[0].msg
	if msg.Key != locale.KeyChooseLangPrompt || msg.Lang != locale.EN || !msg.LanguageChoice {
		t.Fatalf("unexpected prompt %+v", msg)
	}
}

func TestAudioThenPhotoRendersAndCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, mp3(10)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	sess, err := h.store.Sessions().Get(ctx, 10)
	if err != nil || !sess.HasAudio() || sess.HasImage() {
		t.Fatalf("expected audio-only session, got %+v err=%v", sess, err)
	}

	if err := h.service.HandleAttachment(ctx, photo(10)); err != nil {
		t.Fatalf("photo: %v", err)
	}

	want := []locale.Key{locale.KeyAudioOKNowImage, locale.KeyBuildingVideo}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(h.transport.deliveries) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(h.transport.deliveries))
	}
	d := h.transport.deliveries[0]
	if !d.existed || d.caption.Key != locale.KeyDone || d.caption.Lang != locale.RU {
		t.Fatalf("unexpected delivery %+v", d)
	}
	job := h.renderer.calls[0]
	if filepath.Ext(job.AudioPath) != ".mp3" || filepath.Ext(job.ImagePath) != ".jpg" {
		t.Fatalf("unexpected job %+v", job)
	}

	sess, err = h.store.Sessions().Get(ctx, 10)
	if err != nil || !sess.Empty() {
		t.Fatalf("expected empty session after render, got %+v err=%v", sess, err)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("expected work dir empty after delivery, got %v", files)
	}
}

func TestPhotoThenAudioRenders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, photo(11)); err != nil {
		t.Fatalf("photo: %v", err)
	}
	if err := h.service.HandleAttachment(ctx, mp3(11)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	want := []locale.Key{locale.KeyImageOKNowAudio, locale.KeyBuildingVideo}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(h.transport.deliveries) != 1 {
		t.Fatalf("expected one delivery, got %d", len(h.transport.deliveries))
	}
}

func TestRejectedWavLeavesSessionEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	wav := intake.Attachment{UserID: 12, Kind: intake.KindAudio, FileName: "take.wav", MIME: "audio/x-wav"}
	err := h.service.HandleAttachment(ctx, wav)
	var rejection *intake.Rejection
	if !errors.As(err, &rejection) || rejection.Reason != intake.ReasonNotAudio || rejection.Kind != intake.KindAudio {
		t.Fatalf("expected not-audio rejection, got %v", err)
	}
	if kind := pipeline.ErrorKind(err); kind != "rejected" {
		t.Fatalf("expected rejected kind, got %q", kind)
	}
	want := []locale.Key{locale.KeyInvalidAudio}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	sessions, err := h.store.Sessions().List(ctx)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %+v err=%v", sessions, err)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("rejected input must not be downloaded, got %v", files)
	}
}

func TestRenderFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.renderer.fail = true
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, mp3(13)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	err := h.service.HandleAttachment(ctx, photo(13))
	var failure *render.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected render failure, got %v", err)
	}
	if pipeline.ErrorKind(err) != "render_failure" {
		t.Fatalf("unexpected kind %q", pipeline.ErrorKind(err))
	}

	want := []locale.Key{locale.KeyAudioOKNowImage, locale.KeyBuildingVideo, locale.KeyErrorGeneric}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(h.transport.deliveries) != 0 {
		t.Fatal("failed render must not be delivered")
	}
	sess, err := h.store.Sessions().Get(ctx, 13)
	if err != nil || !sess.Empty() {
		t.Fatalf("expected session cleared, got %+v err=%v", sess, err)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("expected inputs deleted, got %v", files)
	}
}

func TestOversizeOutputWarnsBeforeDelivery(t *testing.T) {
	h := newHarness(t, testsupport.WithMaxOutputMB(45))
	h.renderer.size = 60 * 1024 * 1024
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, mp3(14)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := h.service.HandleAttachment(ctx, photo(14)); err != nil {
		t.Fatalf("photo: %v", err)
	}

	want := []locale.Key{locale.KeyAudioOKNowImage, locale.KeyBuildingVideo, locale.KeySizeWarning}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	warning := h.transport.messages[2].msg
	if warning.Vars["size_mb"] != "60.0" {
		t.Fatalf("unexpected size var %q", warning.Vars["size_mb"])
	}
	if len(h.transport.deliveries) != 1 {
		t.Fatal("expected delivery to be attempted despite the warning")
	}
}

func TestDeliveryFailureStillCleansUp(t *testing.T) {
	h := newHarness(t)
	h.transport.deliverErr = errors.New("413 request entity too large")
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, mp3(15)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	err := h.service.HandleAttachment(ctx, photo(15))
	var deliveryErr *pipeline.DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("expected output and inputs deleted, got %v", files)
	}
	sess, _ := h.store.Sessions().Get(ctx, 15)
	if !sess.Empty() {
		t.Fatalf("expected session cleared, got %+v", sess)
	}
}

func TestSupersededUploadIsDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.service.HandleAttachment(ctx, mp3(16)); err != nil {
		t.Fatalf("first audio: %v", err)
	}
	first, _ := h.store.Sessions().Get(ctx, 16)
	if err := h.service.HandleAttachment(ctx, mp3(16)); err != nil {
		t.Fatalf("second audio: %v", err)
	}
	second, _ := h.store.Sessions().Get(ctx, 16)

	if first.AudioPath == second.AudioPath {
		t.Fatal("expected a fresh path for the second upload")
	}
	if workdir.Exists(first.AudioPath) {
		t.Fatal("expected superseded upload to be deleted")
	}
	if !workdir.Exists(second.AudioPath) {
		t.Fatal("expected newest upload to be kept")
	}
	want := []locale.Key{locale.KeyAudioOKNowImage, locale.KeyAudioOKNowImage}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestCorruptedSessionIsReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	missing := filepath.Join(h.work.Root(), "17_gone.jpg")
	testsupport.SeedSession(t, h.store, 17, "", missing)

	err := h.service.HandleAttachment(ctx, mp3(17))
	if !errors.Is(err, pipeline.ErrCorruptedSession) {
		t.Fatalf("expected corrupted session error, got %v", err)
	}
	if pipeline.ErrorKind(err) != "corrupted_session" {
		t.Fatalf("unexpected kind %q", pipeline.ErrorKind(err))
	}
	want := []locale.Key{locale.KeyErrorGeneric}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(h.renderer.calls) != 0 {
		t.Fatal("renderer must not run for a corrupted session")
	}
	sess, _ := h.store.Sessions().Get(ctx, 17)
	if !sess.Empty() {
		t.Fatalf("expected session cleared, got %+v", sess)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("expected uploaded audio deleted, got %v", files)
	}
}

func TestFetchFailureLeavesNoFile(t *testing.T) {
	h := newHarness(t)
	h.transport.fetchErr = errors.New("network down")

	if err := h.service.HandleAttachment(context.Background(), mp3(18)); err == nil {
		t.Fatal("expected fetch error")
	}
	want := []locale.Key{locale.KeyErrorGeneric}
	if got := h.transport.keys(); !equalKeys(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if files := h.workFiles(t); len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestConcurrentUsersRenderIndependently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for userID := int64(100); userID < 110; userID++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := h.service.HandleAttachment(ctx, mp3(id)); err != nil {
				t.Errorf("audio %d: %v", id, err)
				return
			}
			if err := h.service.HandleAttachment(ctx, photo(id)); err != nil {
				t.Errorf("photo %d: %v", id, err)
			}
		}(userID)
	}
	wg.Wait()

	if len(h.transport.deliveries) != 10 {
		t.Fatalf("expected 10 deliveries, got %d", len(h.transport.deliveries))
	}
	sessions, err := h.store.Sessions().List(ctx)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected all sessions cleared, got %+v err=%v", sessions, err)
	}
}

func TestSameUserConcurrentUploadsRenderOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, att := range []intake.Attachment{mp3(20), photo(20)} {
		wg.Add(1)
		go func(att intake.Attachment) {
			defer wg.Done()
			if err := h.service.HandleAttachment(ctx, att); err != nil {
				t.Errorf("HandleAttachment: %v", err)
			}
		}(att)
	}
	wg.Wait()

	if len(h.renderer.calls) != 1 || len(h.transport.deliveries) != 1 {
		t.Fatalf("expected one render and one delivery, got %d and %d", len(h.renderer.calls), len(h.transport.deliveries))
	}
}
