package gallery

// frontendCode is the static asset handed to the webview. The real UI lives
// in the front-end bundle; this snippet wires its gallery panel to the
// plugin's API handlers.
const frontendCode = `(function () {
  const plugin = "gallery";

  async function call(handler, args) {
    const res = await window.lumina.invoke(plugin, handler, args || {});
    return res;
  }

  window.lumina.registerPanel(plugin, {
    setThumbnailSize(size) {
      return call("set_thumbnail_size", { size });
    },
    setViewMode(mode) {
      return call("set_view_mode", { mode });
    },
    toggleLabels() {
      return call("toggle_labels");
    },
    openDirectory(path) {
      return call("set_directory", { path });
    },
  });
})();
`

func (p *Plugin) FrontendCode() string { return frontendCode }
